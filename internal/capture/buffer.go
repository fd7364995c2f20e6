package capture

import (
	"errors"
	"sync"
)

// ErrBufferFull is returned when a recording exceeds its maximum size
var ErrBufferFull = errors.New("capture: recording buffer full")

// DefaultMaxBytes bounds a single recording. At 16 kHz mono PCM16 this is
// over half an hour of audio.
const DefaultMaxBytes = 64 << 20

// chunkBuffer accumulates microphone chunks until the recording stops
type chunkBuffer struct {
	mu        sync.Mutex
	chunks    [][]byte
	totalSize int
	maxSize   int
}

func newChunkBuffer(maxSize int) *chunkBuffer {
	return &chunkBuffer{maxSize: maxSize}
}

// Append copies a chunk into the buffer. Devices may reuse their read
// buffers, so the caller's slice is never retained.
func (b *chunkBuffer) Append(chunk []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.totalSize+len(chunk) > b.maxSize {
		return ErrBufferFull
	}

	b.chunks = append(b.chunks, append([]byte(nil), chunk...))
	b.totalSize += len(chunk)
	return nil
}

// Flush concatenates all chunks in arrival order and empties the buffer
func (b *chunkBuffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return nil
	}

	result := make([]byte, 0, b.totalSize)
	for _, chunk := range b.chunks {
		result = append(result, chunk...)
	}
	b.chunks = nil
	b.totalSize = 0
	return result
}

// Size returns the buffered byte count
func (b *chunkBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSize
}

// ChunkCount returns the number of chunks received so far
func (b *chunkBuffer) ChunkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}
