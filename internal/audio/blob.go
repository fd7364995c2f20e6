// Package audio turns captured recordings into the 16 kHz mono PCM16 the
// recognizer expects, and decodes reply audio for playback.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Container MIME types understood by Decode
const (
	MimeWAV  = "audio/wav"
	MimeMP3  = "audio/mpeg"
	MimePCM  = "audio/pcm" // raw little-endian PCM16, used by microphone streams
	MimeWebM = "audio/webm"
	MimeOgg  = "audio/ogg"

	mimeUnknown = "application/octet-stream"
)

var (
	// ErrEmptyRecording is returned before decoding when a recording holds no data
	ErrEmptyRecording = errors.New("audio: empty recording")

	// ErrUnsupportedFormat is wrapped in a DecodeError for containers we cannot decode
	ErrUnsupportedFormat = errors.New("unsupported audio container")
)

// DecodeError reports a corrupt or unsupported recording
type DecodeError struct {
	MimeType string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: decode %s: %v", e.MimeType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Blob is a recording in its container format, as produced by a capture
// device or decoded from a server payload.
type Blob struct {
	MimeType string
	Data     []byte
}

// Len returns the size of the blob in bytes
func (b Blob) Len() int {
	return len(b.Data)
}

// NormalizeMimeType strips parameters and folds common aliases
func NormalizeMimeType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	}

	switch mt {
	case "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return MimeWAV
	case "audio/mp3", "audio/mpeg3", "audio/x-mpeg", "audio/x-mp3":
		return MimeMP3
	}
	return mt
}

// SniffMimeType guesses the container from its leading bytes
func SniffMimeType(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return MimeWAV
	case bytes.HasPrefix(data, []byte("ID3")):
		return MimeMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return MimeMP3
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return MimeWebM
	case bytes.HasPrefix(data, []byte("OggS")):
		return MimeOgg
	}
	return mimeUnknown
}
