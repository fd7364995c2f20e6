package usecase

import (
	"context"
	"sync"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/domain/entities"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/chat"
)

type fakeView struct {
	mu      sync.Mutex
	turns   []entities.Turn
	pending []entities.PendingState
	alerts  []string
	banners []string
	hidden  int
	memos   [][]entities.Memo
}

func (v *fakeView) TurnAppended(_ domain.Surface, turn entities.Turn) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.turns = append(v.turns, turn)
}

func (v *fakeView) PendingChanged(_ domain.Surface, state entities.PendingState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = append(v.pending, state)
}

func (v *fakeView) Alert(_ domain.Surface, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = append(v.alerts, message)
}

func (v *fakeView) BannerShown(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.banners = append(v.banners, text)
}

func (v *fakeView) BannerHidden() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hidden++
}

func (v *fakeView) MemosChanged(memos []entities.Memo) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.memos = append(v.memos, memos)
}

func (v *fakeView) alertList() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.alerts...)
}

func (v *fakeView) hiddenCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hidden
}

func (v *fakeView) lastPending() entities.PendingState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.pending) == 0 {
		return entities.PendingIdle
	}
	return v.pending[len(v.pending)-1]
}

// fakeChannel behaves like an open chat.Client until closed
type fakeChannel struct {
	mu      sync.Mutex
	handler chat.Handler
	sent    []domain.OutboundMessage
	open    bool
	closes  int
	sendErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{open: true}
}

func (c *fakeChannel) factory() ChannelFactory {
	return func(ctx context.Context, handler chat.Handler) (Channel, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handler = handler
		return c, nil
	}
}

func (c *fakeChannel) Send(msg domain.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if !c.open {
		return chat.ErrNotConnected
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	wasOpen := c.open
	c.open = false
	c.closes++
	h := c.handler
	c.mu.Unlock()

	if wasOpen && h != nil {
		h.HandleClose(nil)
	}
	return nil
}

// drop simulates a transport failure
func (c *fakeChannel) drop(err error) {
	c.mu.Lock()
	c.open = false
	h := c.handler
	c.mu.Unlock()
	h.HandleClose(err)
}

func (c *fakeChannel) deliver(e chat.Event) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h.HandleEvent(e)
}

func (c *fakeChannel) sentMessages() []domain.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.OutboundMessage(nil), c.sent...)
}

type playCall struct {
	payload string
	repeat  int
}

type fakePlayer struct {
	mu     sync.Mutex
	calls  []playCall
	closed bool
}

func (p *fakePlayer) Play(ctx context.Context, payload string) {
	p.PlayRepeated(ctx, payload, 1)
}

func (p *fakePlayer) PlayRepeated(_ context.Context, payload string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, playCall{payload: payload, repeat: n})
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) callList() []playCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]playCall(nil), p.calls...)
}

type fakeRecognizer struct {
	text string
	err  error
	got  audio.PCM16
}

func (r *fakeRecognizer) Recognize(_ context.Context, pcm audio.PCM16) (string, error) {
	r.got = pcm
	return r.text, r.err
}
