package entities

import (
	"errors"
	"time"
)

// PendingState tells the UI which side of an exchange is in progress
type PendingState int

const (
	PendingIdle PendingState = iota
	PendingAwaitingRecognition
	PendingAwaitingReply
	PendingAbandoned
)

func (s PendingState) String() string {
	switch s {
	case PendingIdle:
		return "idle"
	case PendingAwaitingRecognition:
		return "awaiting_recognition"
	case PendingAwaitingReply:
		return "awaiting_reply"
	case PendingAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// ExchangeKind is the kind of user send that opened an exchange
type ExchangeKind string

const (
	ExchangeText  ExchangeKind = "text"
	ExchangeVoice ExchangeKind = "voice"
)

var (
	ErrExchangeInFlight = errors.New("an exchange is already in progress")

	// ErrExchangeAbandoned is returned by Begin until an abandoned exchange
	// has been reported and Reset
	ErrExchangeAbandoned = errors.New("the previous exchange was lost with its connection")
)

// PendingExchange tracks the single outstanding request of a chat surface.
//
//	Idle --Begin(text)--> AwaitingReply --terminal--> Idle
//	Idle --Begin(voice)--> AwaitingRecognition --recognized--> AwaitingReply --terminal--> Idle
//	any active --Abandon--> Abandoned --Reset--> Idle
//
// Begin refuses to start from Abandoned, so a lost exchange is never
// overwritten before it is reported.
//
// It is not safe for concurrent use; the owning surface serializes access.
type PendingExchange struct {
	state     PendingState
	kind      ExchangeKind
	startedAt time.Time
}

// State returns the current state
func (p *PendingExchange) State() PendingState {
	return p.state
}

// Kind returns the kind of the current or last exchange
func (p *PendingExchange) Kind() ExchangeKind {
	return p.kind
}

// Active reports whether a request is outstanding
func (p *PendingExchange) Active() bool {
	return p.state == PendingAwaitingRecognition || p.state == PendingAwaitingReply
}

// Elapsed returns how long the current exchange has been outstanding
func (p *PendingExchange) Elapsed() time.Duration {
	if !p.Active() {
		return 0
	}
	return time.Since(p.startedAt)
}

// Begin opens an exchange after a successful send
func (p *PendingExchange) Begin(kind ExchangeKind) error {
	if p.Active() {
		return ErrExchangeInFlight
	}
	if p.state == PendingAbandoned {
		return ErrExchangeAbandoned
	}
	p.kind = kind
	p.startedAt = time.Now()
	if kind == ExchangeVoice {
		p.state = PendingAwaitingRecognition
	} else {
		p.state = PendingAwaitingReply
	}
	return nil
}

// Recognize advances a voice exchange once the server reports the
// recognized text. It returns false when the event is out of sequence.
func (p *PendingExchange) Recognize() bool {
	if p.state != PendingAwaitingRecognition {
		return false
	}
	p.state = PendingAwaitingReply
	return true
}

// Resolve ends the exchange on a terminal reply. It returns false when no
// exchange was outstanding.
func (p *PendingExchange) Resolve() bool {
	if !p.Active() {
		return false
	}
	p.state = PendingIdle
	return true
}

// Fail ends the exchange because of an error and reports whether one was
// outstanding.
func (p *PendingExchange) Fail() bool {
	wasActive := p.Active()
	if p.state != PendingAbandoned {
		p.state = PendingIdle
	}
	return wasActive
}

// Abandon marks an outstanding exchange as lost with its connection
func (p *PendingExchange) Abandon() bool {
	if !p.Active() {
		return false
	}
	p.state = PendingAbandoned
	return true
}

// Reset returns to Idle and reports whether an abandoned exchange was
// discarded.
func (p *PendingExchange) Reset() bool {
	wasAbandoned := p.state == PendingAbandoned
	p.state = PendingIdle
	return wasAbandoned
}
