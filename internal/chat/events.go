package chat

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/satriahrh/supermom/domain"
)

// ErrUnknownEvent is returned for frames whose type the client does not handle
var ErrUnknownEvent = errors.New("chat: unknown event type")

// Event is a parsed server frame. The set of implementations is closed:
// ErrorEvent, RecognizedEvent, ReplyEvent and PraiseEvent.
type Event interface {
	EventType() domain.MessageType
	isEvent()
}

// ErrorEvent is a server-reported failure. Type is the message type the
// error relates to, if the server named one.
type ErrorEvent struct {
	Type    domain.MessageType
	Message string
}

// RecognizedEvent carries the transcript of a voice_chat recording, sent
// before the reply is generated
type RecognizedEvent struct {
	UserText string
}

// ReplyEvent is a voice_response or text_response
type ReplyEvent struct {
	Type         domain.MessageType
	ChatType     domain.ChatType
	UserText     string
	ResponseText string
	Audio        string
}

// PraiseEvent acknowledges a completed memo
type PraiseEvent struct {
	PraiseText string
	Audio      string
}

func (e ErrorEvent) EventType() domain.MessageType      { return e.Type }
func (e RecognizedEvent) EventType() domain.MessageType { return domain.MessageTypeUserTextRecognized }
func (e ReplyEvent) EventType() domain.MessageType      { return e.Type }
func (e PraiseEvent) EventType() domain.MessageType     { return domain.MessageTypeMemoPraise }

func (ErrorEvent) isEvent()      {}
func (RecognizedEvent) isEvent() {}
func (ReplyEvent) isEvent()      {}
func (PraiseEvent) isEvent()     {}

// HasAudio reports whether the reply carries synthesized speech
func (e ReplyEvent) HasAudio() bool {
	return e.Audio != ""
}

// IsTerminal reports whether an event ends a pending exchange
func IsTerminal(e Event) bool {
	switch e.(type) {
	case ErrorEvent, ReplyEvent:
		return true
	}
	return false
}

// ParseEvent decodes a server frame
func ParseEvent(data []byte) (Event, error) {
	var msg domain.InboundMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("chat: parse event: %w", err)
	}
	return EventFromMessage(msg)
}

// EventFromMessage converts a raw inbound message into its event variant.
// The error flag takes precedence over the type.
func EventFromMessage(msg domain.InboundMessage) (Event, error) {
	if msg.Error {
		return ErrorEvent{Type: msg.Type, Message: msg.Message}, nil
	}

	switch msg.Type {
	case domain.MessageTypeUserTextRecognized:
		return RecognizedEvent{UserText: msg.UserText}, nil
	case domain.MessageTypeVoiceResponse, domain.MessageTypeTextResponse:
		return ReplyEvent{
			Type:         msg.Type,
			ChatType:     msg.ChatType,
			UserText:     msg.UserText,
			ResponseText: msg.ResponseText,
			Audio:        msg.Audio,
		}, nil
	case domain.MessageTypeMemoPraise:
		return PraiseEvent{PraiseText: msg.PraiseText, Audio: msg.Audio}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Type)
}
