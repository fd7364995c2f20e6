package domain

import (
	"errors"
	"fmt"
	"strings"
)

// MessageType is the "type" discriminator of a duplex channel message
type MessageType string

// Outbound message types
const (
	MessageTypeTextChat     MessageType = "text_chat"
	MessageTypeVoiceChat    MessageType = "voice_chat"
	MessageTypeMemoComplete MessageType = "memo_complete"
)

// Inbound message types
const (
	MessageTypeUserTextRecognized MessageType = "user_text_recognized"
	MessageTypeVoiceResponse      MessageType = "voice_response"
	MessageTypeTextResponse       MessageType = "text_response"
	MessageTypeMemoPraise         MessageType = "memo_praise"
)

// ChatType selects the assistant persona on the server
type ChatType string

const (
	ChatTypeNutritionAdvisor ChatType = "nutrition_advisor"
	ChatTypeEmotionalSupport ChatType = "emotional_support"
)

// Valid reports whether t is a known chat type
func (t ChatType) Valid() bool {
	switch t {
	case ChatTypeNutritionAdvisor, ChatTypeEmotionalSupport:
		return true
	}
	return false
}

// Surface is one independent conversational context of the UI
type Surface string

const (
	SurfaceFood Surface = "food"
	SurfaceTalk Surface = "talk"
	SurfaceMemo Surface = "memo"
)

var (
	ErrUnknownSurface  = errors.New("unknown chat surface")
	ErrUnknownChatType = errors.New("unknown chat type")
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrEmptyAudio      = errors.New("audio payload cannot be empty")
)

var surfaceChatTypes = map[Surface]ChatType{
	SurfaceFood: ChatTypeNutritionAdvisor,
	SurfaceTalk: ChatTypeEmotionalSupport,
}

// ChatTypeForSurface maps a chat surface to the chat type it sends
func ChatTypeForSurface(s Surface) (ChatType, error) {
	ct, ok := surfaceChatTypes[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSurface, s)
	}
	return ct, nil
}

// ParseSurface validates a surface name coming from config or flags
func ParseSurface(name string) (Surface, error) {
	s := Surface(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case SurfaceFood, SurfaceTalk, SurfaceMemo:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSurface, name)
}

// OutboundMessage is a message sent by the client on the duplex channel
type OutboundMessage struct {
	Type     MessageType `json:"type"`
	ChatType ChatType    `json:"chat_type,omitempty"`
	Text     string      `json:"text,omitempty"`
	Audio    string      `json:"audio,omitempty"` // base64 PCM16 LE, 16 kHz mono
	MemoText string      `json:"memo_text,omitempty"`
}

// NewTextChat builds a text_chat message
func NewTextChat(chatType ChatType, text string) (OutboundMessage, error) {
	msg := OutboundMessage{Type: MessageTypeTextChat, ChatType: chatType, Text: text}
	return msg, msg.Validate()
}

// NewVoiceChat builds a voice_chat message carrying an encoded PCM16 payload
func NewVoiceChat(chatType ChatType, audio string) (OutboundMessage, error) {
	msg := OutboundMessage{Type: MessageTypeVoiceChat, ChatType: chatType, Audio: audio}
	return msg, msg.Validate()
}

// NewMemoComplete builds a memo_complete message
func NewMemoComplete(memoText string) (OutboundMessage, error) {
	msg := OutboundMessage{Type: MessageTypeMemoComplete, MemoText: memoText}
	return msg, msg.Validate()
}

// Validate checks that the message is one of the three outbound shapes
func (m OutboundMessage) Validate() error {
	switch m.Type {
	case MessageTypeTextChat:
		if !m.ChatType.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownChatType, m.ChatType)
		}
		if strings.TrimSpace(m.Text) == "" {
			return ErrEmptyText
		}
	case MessageTypeVoiceChat:
		if !m.ChatType.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownChatType, m.ChatType)
		}
		if m.Audio == "" {
			return ErrEmptyAudio
		}
	case MessageTypeMemoComplete:
		if strings.TrimSpace(m.MemoText) == "" {
			return ErrEmptyText
		}
	default:
		return fmt.Errorf("unsupported outbound message type %q", m.Type)
	}
	return nil
}

// InboundMessage is the raw shape of every message the server sends
type InboundMessage struct {
	Error        bool        `json:"error"`
	Message      string      `json:"message,omitempty"`
	Type         MessageType `json:"type,omitempty"`
	ChatType     ChatType    `json:"chat_type,omitempty"`
	UserText     string      `json:"user_text,omitempty"`
	ResponseText string      `json:"response_text,omitempty"`
	Audio        string      `json:"audio,omitempty"`
	PraiseText   string      `json:"praise_text,omitempty"`
}

// NewErrorMessage builds an error frame; msgType may be empty
func NewErrorMessage(msgType MessageType, message string) InboundMessage {
	return InboundMessage{Error: true, Type: msgType, Message: message}
}

// ASRRequest is the body of the one-shot recognition endpoint
type ASRRequest struct {
	Audio string `json:"audio"`
}

// ASRResponse is the reply of the one-shot recognition endpoint
type ASRResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message,omitempty"`
	Text    string `json:"text,omitempty"`
}

// TimerAudioResponse is the reply of the timer-completion audio endpoint
type TimerAudioResponse struct {
	Error       bool   `json:"error"`
	Message     string `json:"message,omitempty"`
	Audio       string `json:"audio,omitempty"`
	RepeatTimes int    `json:"repeat_times,omitempty"`
	Format      string `json:"format,omitempty"`
}
