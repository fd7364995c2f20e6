// Package codec converts binary payloads to and from base64 text for the
// chat channel and HTTP endpoints.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/satriahrh/supermom/internal/audio"
)

// DefaultChunkSize is the window used when encoding large payloads
const DefaultChunkSize = 8192

// Error reports malformed base64 input
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Encoder encodes bytes to standard padded base64 in fixed windows, so a
// large recording never needs a second full-size copy in flight.
type Encoder struct {
	window int
}

// NewEncoder creates an encoder with the given chunk size. The window is
// rounded down to a multiple of 3 so chunks concatenate without inner
// padding; sizes below 3 fall back to DefaultChunkSize.
func NewEncoder(chunkSize int) *Encoder {
	if chunkSize < 3 {
		chunkSize = DefaultChunkSize
	}
	return &Encoder{window: chunkSize - chunkSize%3}
}

// Window returns the number of input bytes encoded per chunk
func (e *Encoder) Window() int {
	return e.window
}

// Encode returns the base64 text of data. The result is identical to
// encoding the whole buffer at once.
func (e *Encoder) Encode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(base64.StdEncoding.EncodedLen(len(data)))

	out := make([]byte, base64.StdEncoding.EncodedLen(e.window))
	for start := 0; start < len(data); start += e.window {
		end := start + e.window
		if end > len(data) {
			end = len(data)
		}
		n := base64.StdEncoding.EncodedLen(end - start)
		base64.StdEncoding.Encode(out[:n], data[start:end])
		sb.Write(out[:n])
	}
	return sb.String()
}

// Decode parses standard padded base64
func (e *Encoder) Decode(text string) ([]byte, error) {
	return Decode(text)
}

// DecodeBlob decodes base64 audio and tags it with its sniffed container
func (e *Encoder) DecodeBlob(text string) (audio.Blob, error) {
	data, err := Decode(text)
	if err != nil {
		return audio.Blob{}, err
	}
	if len(data) == 0 {
		return audio.Blob{}, &Error{Op: "decode", Err: errors.New("empty payload")}
	}
	return audio.Blob{MimeType: audio.SniffMimeType(data), Data: data}, nil
}

var defaultEncoder = NewEncoder(DefaultChunkSize)

// Encode encodes data with the default chunk size
func Encode(data []byte) string {
	return defaultEncoder.Encode(data)
}

// Decode parses standard padded base64, ignoring surrounding whitespace
func Decode(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, &Error{Op: "decode", Err: err}
	}
	return data, nil
}
