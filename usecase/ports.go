package usecase

import (
	"context"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/domain/entities"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/chat"
)

// View renders surface state. It is called with the surface lock held, in
// the order changes happen, and must not call back into the surface.
type View interface {
	TurnAppended(surface domain.Surface, turn entities.Turn)
	PendingChanged(surface domain.Surface, state entities.PendingState)
	Alert(surface domain.Surface, message string)
	BannerShown(text string)
	BannerHidden()
	MemosChanged(memos []entities.Memo)
}

// Channel is an open duplex connection. *chat.Client satisfies it.
type Channel interface {
	Send(msg domain.OutboundMessage) error
	Close() error
}

// ChannelFactory opens a channel whose inbound events go to handler
type ChannelFactory func(ctx context.Context, handler chat.Handler) (Channel, error)

// Player plays encoded reply audio. *playback.Player satisfies it.
type Player interface {
	Play(ctx context.Context, payload string)
	PlayRepeated(ctx context.Context, payload string, n int)
	Close() error
}

// Transcoder turns a recording into 16 kHz mono PCM16
type Transcoder interface {
	Transcode(ctx context.Context, blob audio.Blob) (audio.PCM16, error)
}

// Recognizer is the one-shot speech-to-text endpoint
type Recognizer interface {
	Recognize(ctx context.Context, pcm audio.PCM16) (string, error)
}

// TimerAudioSource fetches the timer-completion chime
type TimerAudioSource interface {
	FetchTimerAudio(ctx context.Context) (domain.TimerAudioResponse, error)
}

// surfaceHandler routes channel callbacks to a surface, tagged with the
// connection generation they belong to
type surfaceHandler struct {
	generation uint64
	onEvent    func(generation uint64, event chat.Event)
	onClose    func(generation uint64, err error)
}

func (h *surfaceHandler) HandleEvent(event chat.Event) {
	h.onEvent(h.generation, event)
}

func (h *surfaceHandler) HandleClose(err error) {
	h.onClose(h.generation, err)
}
