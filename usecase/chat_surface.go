package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/domain/entities"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/chat"
	"github.com/satriahrh/supermom/internal/codec"
)

const (
	errorTurnPrefix     = "Error: "
	unknownErrorMessage = "unknown error"
	interruptedMessage  = "the previous request was interrupted by a lost connection"
)

// ErrSurfaceClosed is returned by operations on a closed surface
var ErrSurfaceClosed = errors.New("surface closed")

// ChatSurface is one conversational context (food or talk): its turn log,
// its pending exchange and its channel.
type ChatSurface struct {
	surface    domain.Surface
	chatType   domain.ChatType
	transcoder Transcoder
	encoder    *codec.Encoder
	player     Player
	view       View
	logger     *zap.Logger

	mu           sync.Mutex
	channel      Channel
	generation   uint64
	conversation *entities.Conversation
	pending      entities.PendingExchange
	closed       bool

	ctx      context.Context
	cancel   context.CancelFunc
	playback *playQueue
}

// NewChatSurface creates a chat surface. Surfaces without a chat type fail
// here rather than on first send.
func NewChatSurface(
	surface domain.Surface,
	transcoder Transcoder,
	encoder *codec.Encoder,
	player Player,
	view View,
	logger *zap.Logger,
) (*ChatSurface, error) {
	chatType, err := domain.ChatTypeForSurface(surface)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ChatSurface{
		surface:      surface,
		chatType:     chatType,
		transcoder:   transcoder,
		encoder:      encoder,
		player:       player,
		view:         view,
		logger:       logger.With(zap.String("surface", string(surface))),
		conversation: entities.NewConversation(),
		ctx:          ctx,
		cancel:       cancel,
		playback:     newPlayQueue(ctx, player),
	}, nil
}

// Surface returns the surface name
func (s *ChatSurface) Surface() domain.Surface {
	return s.surface
}

// ChatType returns the chat type sent with every message
func (s *ChatSurface) ChatType() domain.ChatType {
	return s.chatType
}

// Turns returns a copy of the conversation log
func (s *ChatSurface) Turns() []entities.Turn {
	return s.conversation.Turns()
}

// Pending returns the state of the pending exchange
func (s *ChatSurface) Pending() entities.PendingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.State()
}

// Connect opens a new channel and makes it the surface's current one. A
// previous channel is closed; an exchange it left unresolved is reported
// as interrupted.
func (s *ChatSurface) Connect(ctx context.Context, open ChannelFactory) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSurfaceClosed
	}
	s.generation++
	gen := s.generation
	old := s.channel
	s.channel = nil

	if s.pending.Abandon() {
		s.view.PendingChanged(s.surface, s.pending.State())
	}
	if s.pending.Reset() {
		turn := s.conversation.Append(entities.SenderAssistant, errorTurnPrefix+interruptedMessage, "")
		s.view.TurnAppended(s.surface, turn)
		s.view.PendingChanged(s.surface, s.pending.State())
	}
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	ch, err := open(ctx, &surfaceHandler{
		generation: gen,
		onEvent:    s.handleEvent,
		onClose:    s.handleClose,
	})
	if err != nil {
		s.logger.Error("Failed to open channel", zap.Error(err))
		return err
	}

	s.mu.Lock()
	if s.closed || s.generation != gen {
		s.mu.Unlock()
		ch.Close()
		return ErrSurfaceClosed
	}
	s.channel = ch
	s.mu.Unlock()

	s.logger.Info("Channel attached", zap.Uint64("generation", gen))
	return nil
}

// SendText sends a text_chat message. The user turn is shown as soon as the
// exchange opens.
func (s *ChatSurface) SendText(text string) error {
	msg, err := domain.NewTextChat(s.chatType, text)
	if err != nil {
		return err
	}
	return s.send(msg, entities.ExchangeText, text)
}

// SendRecording transcodes a finished recording and sends it as voice_chat.
// It is the capture pipeline of a chat surface; failures are alerted here.
func (s *ChatSurface) SendRecording(ctx context.Context, blob audio.Blob) error {
	pcm, err := s.transcoder.Transcode(ctx, blob)
	if err != nil {
		s.logger.Warn("Recording discarded", zap.Error(err))
		s.alert(AlertFor(err))
		return &AlertedError{Err: err}
	}

	payload := s.encoder.Encode(pcm.Bytes())
	msg, err := domain.NewVoiceChat(s.chatType, payload)
	if err != nil {
		s.alert(AlertFor(err))
		return &AlertedError{Err: err}
	}

	s.logger.Debug("Sending recording",
		zap.Int("samples", len(pcm)),
		zap.Duration("duration", pcm.Duration()),
		zap.Int("payloadSize", len(payload)))

	return s.send(msg, entities.ExchangeVoice, "")
}

// send opens the exchange, then writes without holding the lock: a write
// failure closes the channel, which calls back into handleClose. Every
// failure is alerted here and returned as an *AlertedError.
func (s *ChatSurface) send(msg domain.OutboundMessage, kind entities.ExchangeKind, userText string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSurfaceClosed
	}
	if s.channel == nil {
		// An exchange lost with the previous channel stays Abandoned, and
		// its connection loss already alerted, until Connect reports it.
		if s.pending.State() != entities.PendingAbandoned {
			s.view.Alert(s.surface, AlertConnectionLost)
		}
		s.mu.Unlock()
		s.logger.Warn("Not connected", zap.String("type", string(msg.Type)))
		return &AlertedError{Err: fmt.Errorf("send %s: %w", msg.Type, chat.ErrNotConnected)}
	}
	if err := s.pending.Begin(kind); err != nil {
		s.view.Alert(s.surface, AlertFor(err))
		s.mu.Unlock()
		return &AlertedError{Err: err}
	}
	ch, gen := s.channel, s.generation
	if userText != "" {
		turn := s.conversation.Append(entities.SenderUser, userText, "")
		s.view.TurnAppended(s.surface, turn)
	}
	s.view.PendingChanged(s.surface, s.pending.State())
	s.mu.Unlock()

	err := ch.Send(msg)
	if err == nil {
		s.logger.Info("Message sent", zap.String("type", string(msg.Type)))
		return nil
	}

	s.logger.Warn("Failed to send message", zap.String("type", string(msg.Type)), zap.Error(err))

	// The message never left, so the exchange is dropped rather than
	// reported as interrupted on the next Connect.
	s.mu.Lock()
	alreadyReported := false
	if gen == s.generation {
		alreadyReported = s.pending.State() == entities.PendingAbandoned
		s.pending.Reset()
		s.view.PendingChanged(s.surface, s.pending.State())
	}
	if !alreadyReported {
		s.view.Alert(s.surface, AlertFor(err))
	}
	s.mu.Unlock()

	return &AlertedError{Err: fmt.Errorf("send %s: %w", msg.Type, err)}
}

// handleEvent applies one inbound event. Events arrive in delivery order.
func (s *ChatSurface) handleEvent(gen uint64, event chat.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.closed {
		s.logger.Debug("Dropping event from a stale channel", zap.String("type", string(event.EventType())))
		return
	}

	switch e := event.(type) {
	case chat.ErrorEvent:
		message := e.Message
		if message == "" {
			message = unknownErrorMessage
		}
		turn := s.conversation.Append(entities.SenderAssistant, errorTurnPrefix+message, "")
		s.view.TurnAppended(s.surface, turn)
		if !s.pending.Fail() {
			s.logger.Warn("Error event without a pending exchange", zap.String("message", e.Message))
		}
		s.view.PendingChanged(s.surface, s.pending.State())

	case chat.RecognizedEvent:
		if !s.pending.Recognize() {
			s.logger.Warn("Unexpected recognition event",
				zap.String("pending", s.pending.State().String()))
			return
		}
		turn := s.conversation.Append(entities.SenderUser, e.UserText, "")
		s.view.TurnAppended(s.surface, turn)
		s.view.PendingChanged(s.surface, s.pending.State())

	case chat.ReplyEvent:
		if !s.pending.Active() {
			s.logger.Warn("Reply without a pending exchange", zap.String("type", string(e.Type)))
			return
		}
		if s.pending.State() == entities.PendingAwaitingRecognition && e.UserText != "" {
			turn := s.conversation.Append(entities.SenderUser, e.UserText, "")
			s.view.TurnAppended(s.surface, turn)
		}
		s.pending.Resolve()

		turn := s.conversation.Append(entities.SenderAssistant, e.ResponseText, e.Audio)
		s.view.TurnAppended(s.surface, turn)
		s.view.PendingChanged(s.surface, s.pending.State())

		if e.HasAudio() {
			s.playback.Push(e.Audio)
		}

	default:
		s.logger.Warn("Ignoring event", zap.String("type", string(event.EventType())))
	}
}

func (s *ChatSurface) handleClose(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.channel = nil

	abandoned := s.pending.Abandon()
	if abandoned {
		s.logger.Warn("Exchange abandoned", zap.Error(err))
		s.view.PendingChanged(s.surface, s.pending.State())
	}
	if err != nil && !s.closed {
		s.view.Alert(s.surface, AlertConnectionLost)
	}
}

func (s *ChatSurface) alert(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Alert(s.surface, message)
}

// Close tears the surface down: the channel is closed, pending sends are
// abandoned, playback is stopped and the audio output released.
func (s *ChatSurface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ch := s.channel
	s.channel = nil
	s.pending.Abandon()
	s.mu.Unlock()

	s.cancel()

	var err error
	if ch != nil {
		err = ch.Close()
	}
	s.playback.Close()

	if playerErr := s.player.Close(); playerErr != nil && err == nil {
		err = playerErr
	}
	s.logger.Info("Surface closed", zap.Int("turns", s.conversation.Len()))
	return err
}
