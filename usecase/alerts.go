package usecase

import (
	"errors"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/domain/entities"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/capture"
	"github.com/satriahrh/supermom/internal/chat"
	"github.com/satriahrh/supermom/internal/codec"
)

// User-facing alert texts
const (
	AlertConnectionLost    = "connection lost, please retry"
	AlertDeviceUnavailable = "microphone unavailable, check the device and its permissions"
	AlertEmptyRecording    = "nothing was recorded, please try again"
	AlertUnreadable        = "could not read the recording"
	AlertEncodeFailed      = "could not prepare the recording for sending"
	AlertBusy              = "please wait for the current reply"
	AlertNothingHeard      = "nothing was recognized, please try again"
	AlertNotRecording      = "not recording"
	AlertNoSuchMemo        = "no such memo"
	AlertGeneric           = "something went wrong, please retry"
)

// ErrNothingRecognized is returned when recognition produced no text
var ErrNothingRecognized = errors.New("no speech recognized")

// AlertedError wraps a failure the surface has already shown to the user
type AlertedError struct {
	Err error
}

func (e *AlertedError) Error() string {
	return e.Err.Error()
}

func (e *AlertedError) Unwrap() error {
	return e.Err
}

// Alerted reports whether err was already shown to the user
func Alerted(err error) bool {
	var alerted *AlertedError
	return errors.As(err, &alerted)
}

// AlertFor maps a failure to the message shown to the user
func AlertFor(err error) string {
	var decodeErr *audio.DecodeError
	var codecErr *codec.Error

	switch {
	case errors.Is(err, chat.ErrNotConnected), errors.Is(err, entities.ErrExchangeAbandoned):
		return AlertConnectionLost
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return AlertDeviceUnavailable
	case errors.Is(err, audio.ErrEmptyRecording):
		return AlertEmptyRecording
	case errors.As(err, &decodeErr):
		return AlertUnreadable
	case errors.As(err, &codecErr):
		return AlertEncodeFailed
	case errors.Is(err, entities.ErrExchangeInFlight), errors.Is(err, capture.ErrFinalizing):
		return AlertBusy
	case errors.Is(err, capture.ErrNotRecording):
		return AlertNotRecording
	case errors.Is(err, entities.ErrMemoNotFound):
		return AlertNoSuchMemo
	case errors.Is(err, ErrNothingRecognized):
		return AlertNothingHeard
	case errors.Is(err, domain.ErrEmptyText):
		return "please enter some text"
	}
	return AlertGeneric
}
