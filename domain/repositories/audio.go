package repositories

import "context"

// CaptureConstraints are the settings requested when opening a microphone
type CaptureConstraints struct {
	Channels         int
	SampleRate       int // a hint; devices may capture at their native rate
	EchoCancellation bool
	NoiseSuppression bool
}

// DefaultCaptureConstraints asks for mono 16 kHz with voice processing on
func DefaultCaptureConstraints() CaptureConstraints {
	return CaptureConstraints{
		Channels:         1,
		SampleRate:       16000,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// StreamFormat describes the chunks a MicrophoneStream produces
type StreamFormat struct {
	MimeType   string // "audio/pcm" for raw little-endian PCM16
	SampleRate int
	Channels   int
}

// Microphone grants exclusive access to a capture device
type Microphone interface {
	Open(ctx context.Context, constraints CaptureConstraints) (MicrophoneStream, error)
}

// MicrophoneStream is an open capture handle. ReadChunk blocks until data
// is available and returns io.EOF once the stream is closed.
type MicrophoneStream interface {
	Format() StreamFormat
	ReadChunk() ([]byte, error)
	Close() error
}

// AudioOutput plays mono float samples at its own sample rate. Play blocks
// until playback completes.
type AudioOutput interface {
	SampleRate() int
	Play(ctx context.Context, samples []float32) error
	Close() error
}

// AudioOutputFactory creates an output context
type AudioOutputFactory interface {
	NewOutput() (AudioOutput, error)
}
