package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Buffer is decoded audio at its native rate, one float slice per channel,
// samples nominally in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   [][]float64
}

// Frames returns the number of samples per channel
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playing time of the buffer
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Decode decodes a blob according to its MIME type, falling back to the
// sniffed container when the declared type is missing or not decodable.
func Decode(blob Blob) (*Buffer, error) {
	mimeType := NormalizeMimeType(blob.MimeType)
	if mimeType != MimeWAV && mimeType != MimeMP3 {
		if sniffed := SniffMimeType(blob.Data); sniffed != mimeUnknown {
			mimeType = sniffed
		}
	}

	var buf *Buffer
	var err error
	switch mimeType {
	case MimeWAV:
		buf, err = DecodeWAV(blob.Data)
	case MimeMP3:
		buf, err = DecodeMP3(blob.Data)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		if mimeType == "" {
			mimeType = mimeUnknown
		}
		return nil, &DecodeError{MimeType: mimeType, Err: err}
	}
	return buf, nil
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields interleaved stereo
// 16-bit little-endian samples.
func DecodeMP3(data []byte) (*Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3 frames: %w", err)
	}

	frames := len(raw) / 4
	if frames == 0 {
		return nil, errors.New("no MP3 frames decoded")
	}

	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left[i] = float64(int16(binary.LittleEndian.Uint16(raw[i*4:]))) / 32768
		right[i] = float64(int16(binary.LittleEndian.Uint16(raw[i*4+2:]))) / 32768
	}

	return &Buffer{
		SampleRate: dec.SampleRate(),
		Channels:   [][]float64{left, right},
	}, nil
}
