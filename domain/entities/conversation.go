package entities

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sender identifies who produced a turn
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Turn is one entry in a conversation log. Turns are never modified after
// they are appended.
type Turn struct {
	ID        ulid.ULID `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	AudioRef  string    `json:"audio_ref,omitempty"` // encoded reply audio, if any
	CreatedAt time.Time `json:"created_at"`
}

// HasAudio reports whether the turn carries reply audio
func (t Turn) HasAudio() bool {
	return t.AudioRef != ""
}

// Conversation is the append-only turn log of one chat surface
type Conversation struct {
	mu      sync.Mutex
	turns   []Turn
	entropy *ulid.MonotonicEntropy
	lastMs  uint64
	now     func() time.Time
}

// NewConversation creates an empty conversation
func NewConversation() *Conversation {
	return &Conversation{
		turns:   make([]Turn, 0),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Append adds a turn and returns it. IDs are strictly increasing even if
// the wall clock steps backwards.
func (c *Conversation) Append(sender Sender, text, audioRef string) Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ms := ulid.Timestamp(now)
	if ms < c.lastMs {
		ms = c.lastMs
	}
	c.lastMs = ms

	turn := Turn{
		ID:        ulid.MustNew(ms, c.entropy),
		Sender:    sender,
		Text:      text,
		AudioRef:  audioRef,
		CreatedAt: now,
	}
	c.turns = append(c.turns, turn)
	return turn
}

// Turns returns a copy of the log in append order
func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Last returns the most recent turn
func (c *Conversation) Last() (Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}
