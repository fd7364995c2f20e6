package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/domain/entities"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/chat"
)

// DefaultBannerDuration is how long a praise or confirmation banner stays up
const DefaultBannerDuration = 3 * time.Second

const memoAddedBanner = "Added: "

// MemoOption configures a MemoSurface
type MemoOption func(*MemoSurface)

// WithBannerDuration sets how long banners stay visible
func WithBannerDuration(d time.Duration) MemoOption {
	return func(s *MemoSurface) {
		if d > 0 {
			s.bannerDuration = d
		}
	}
}

// MemoSurface is the memo board: memos added by text or voice, and a praise
// banner when one is completed.
type MemoSurface struct {
	memos          *entities.MemoList
	transcoder     Transcoder
	recognizer     Recognizer
	player         Player
	view           View
	bannerDuration time.Duration
	logger         *zap.Logger

	mu          sync.Mutex
	channel     Channel
	generation  uint64
	closed      bool
	banner      string
	bannerSeq   uint64
	bannerTimer *time.Timer

	ctx      context.Context
	cancel   context.CancelFunc
	playback *playQueue
}

// NewMemoSurface creates the memo surface
func NewMemoSurface(
	transcoder Transcoder,
	recognizer Recognizer,
	player Player,
	view View,
	logger *zap.Logger,
	opts ...MemoOption,
) *MemoSurface {
	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoSurface{
		memos:          entities.NewMemoList(),
		transcoder:     transcoder,
		recognizer:     recognizer,
		player:         player,
		view:           view,
		bannerDuration: DefaultBannerDuration,
		logger:         logger.With(zap.String("surface", string(domain.SurfaceMemo))),
		ctx:            ctx,
		cancel:         cancel,
		playback:       newPlayQueue(ctx, player),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the memo channel, replacing any previous one
func (s *MemoSurface) Connect(ctx context.Context, open ChannelFactory) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSurfaceClosed
	}
	s.generation++
	gen := s.generation
	old := s.channel
	s.channel = nil
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
	defer s.mu.Unlock()
	if s.closed || s.generation != gen {
		ch.Close()
		return ErrSurfaceClosed
	}
	s.channel = ch
	return nil
}

// Memos returns the board in insertion order
func (s *MemoSurface) Memos() []entities.Memo {
	return s.memos.List()
}

// MemoAt returns the memo at a zero-based board position
func (s *MemoSurface) MemoAt(i int) (entities.Memo, error) {
	return s.memos.At(i)
}

// Banner returns the banner currently shown, if any
func (s *MemoSurface) Banner() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner, s.banner != ""
}

// AddMemo adds a memo and confirms it with a banner
func (s *MemoSurface) AddMemo(text string) (entities.Memo, error) {
	memo, err := s.memos.Add(text)
	if err != nil {
		return entities.Memo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.MemosChanged(s.memos.List())
	s.showBanner(memoAddedBanner + memo.Text)

	s.logger.Info("Memo added", zap.String("memoID", memo.ID.String()))
	return memo, nil
}

// AddMemoFromRecording recognizes a recording through the one-shot
// endpoint and adds the transcript as a memo. Failures are alerted here.
func (s *MemoSurface) AddMemoFromRecording(ctx context.Context, blob audio.Blob) (entities.Memo, error) {
	memo, err := s.addMemoFromRecording(ctx, blob)
	if err != nil {
		s.logger.Warn("Voice memo failed", zap.Error(err))
		s.alert(AlertFor(err))
		return memo, &AlertedError{Err: err}
	}
	return memo, nil
}

func (s *MemoSurface) addMemoFromRecording(ctx context.Context, blob audio.Blob) (entities.Memo, error) {
	pcm, err := s.transcoder.Transcode(ctx, blob)
	if err != nil {
		return entities.Memo{}, err
	}

	text, err := s.recognizer.Recognize(ctx, pcm)
	if err != nil {
		return entities.Memo{}, fmt.Errorf("recognize memo: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return entities.Memo{}, ErrNothingRecognized
	}

	return s.AddMemo(text)
}

// RecordingPipeline adapts AddMemoFromRecording to a capture pipeline
func (s *MemoSurface) RecordingPipeline(ctx context.Context, blob audio.Blob) error {
	_, err := s.AddMemoFromRecording(ctx, blob)
	return err
}

// CompleteMemo marks a memo done and asks the server for praise. The memo
// stays done locally even when the channel is down.
func (s *MemoSurface) CompleteMemo(id uuid.UUID) error {
	memo, changed, err := s.memos.Complete(id)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.mu.Lock()
	s.view.MemosChanged(s.memos.List())
	ch := s.channel
	s.mu.Unlock()

	msg, err := domain.NewMemoComplete(memo.Text)
	if err != nil {
		return err
	}

	if ch == nil {
		err = chat.ErrNotConnected
	} else {
		err = ch.Send(msg)
	}
	if err != nil {
		s.logger.Warn("Failed to request praise", zap.String("memoID", id.String()), zap.Error(err))
		s.alert(AlertFor(err))
		return &AlertedError{Err: fmt.Errorf("send %s: %w", msg.Type, err)}
	}

	s.logger.Info("Memo completed", zap.String("memoID", id.String()))
	return nil
}

// ReopenMemo marks a memo not done
func (s *MemoSurface) ReopenMemo(id uuid.UUID) error {
	if _, err := s.memos.Reopen(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.MemosChanged(s.memos.List())
	return nil
}

// RemoveMemo deletes a memo from the board
func (s *MemoSurface) RemoveMemo(id uuid.UUID) error {
	if err := s.memos.Remove(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.MemosChanged(s.memos.List())
	return nil
}

func (s *MemoSurface) handleEvent(gen uint64, event chat.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.closed {
		return
	}

	switch e := event.(type) {
	case chat.PraiseEvent:
		s.showBanner(e.PraiseText)
		if e.Audio != "" {
			s.playback.Push(e.Audio)
		}

	case chat.ErrorEvent:
		message := e.Message
		if message == "" {
			message = unknownErrorMessage
		}
		s.view.Alert(domain.SurfaceMemo, errorTurnPrefix+message)

	default:
		s.logger.Warn("Ignoring event", zap.String("type", string(event.EventType())))
	}
}

func (s *MemoSurface) handleClose(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.channel = nil
	if err != nil && !s.closed {
		s.view.Alert(domain.SurfaceMemo, AlertConnectionLost)
	}
}

// showBanner replaces the current banner and schedules it to hide. The
// caller holds s.mu.
func (s *MemoSurface) showBanner(text string) {
	if s.closed {
		return
	}
	s.bannerSeq++
	seq := s.bannerSeq
	if s.bannerTimer != nil {
		s.bannerTimer.Stop()
	}

	s.banner = text
	s.view.BannerShown(text)
	s.bannerTimer = time.AfterFunc(s.bannerDuration, func() {
		s.hideBanner(seq)
	})
}

func (s *MemoSurface) hideBanner(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer banner owns the slot.
	if seq != s.bannerSeq || s.banner == "" {
		return
	}
	s.banner = ""
	s.bannerTimer = nil
	s.view.BannerHidden()
}

func (s *MemoSurface) alert(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Alert(domain.SurfaceMemo, message)
}

// Close closes the channel, hides the banner and releases the audio output
func (s *MemoSurface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ch := s.channel
	s.channel = nil
	if s.bannerTimer != nil {
		s.bannerTimer.Stop()
		s.bannerTimer = nil
	}
	s.banner = ""
	s.mu.Unlock()

	s.cancel()

	var errs []error
	if ch != nil {
		errs = append(errs, ch.Close())
	}
	s.playback.Close()
	errs = append(errs, s.player.Close())
	return errors.Join(errs...)
}
