// Package capture owns the microphone for one recording at a time and hands
// each finished recording to a transcode-and-send pipeline.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain/repositories"
	"github.com/satriahrh/supermom/internal/audio"
)

// State of a capture session
type State int

const (
	StateIdle State = iota
	StateRecording
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrDeviceUnavailable is returned when no microphone exists or access is denied
	ErrDeviceUnavailable = errors.New("capture: microphone unavailable")

	// ErrNotRecording is returned by Stop outside of a recording
	ErrNotRecording = errors.New("capture: not recording")

	// ErrFinalizing is returned by Start while the previous recording is
	// still being transcoded or sent
	ErrFinalizing = errors.New("capture: previous recording is still finalizing")
)

// Pipeline receives each finished recording
type Pipeline func(ctx context.Context, blob audio.Blob) error

// ErrorHandler is notified of failures that happen after Start or Stop returned
type ErrorHandler func(err error)

// Option configures a Session
type Option func(*Session)

// WithConstraints overrides the microphone constraints
func WithConstraints(c repositories.CaptureConstraints) Option {
	return func(s *Session) {
		s.constraints = c
	}
}

// WithErrorHandler sets the callback for asynchronous failures
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Session) {
		s.onError = h
	}
}

// WithMaxBytes bounds the size of a single recording
func WithMaxBytes(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// Session is a single-recording capture state machine
type Session struct {
	mic         repositories.Microphone
	pipeline    Pipeline
	onError     ErrorHandler
	constraints repositories.CaptureConstraints
	maxBytes    int
	logger      *zap.Logger

	mu         sync.Mutex
	state      State
	stream     repositories.MicrophoneStream
	buffer     *chunkBuffer
	readDone   chan struct{}
	startedAt  time.Time
	finalizing chan struct{}
}

// NewSession creates a capture session over the given microphone
func NewSession(mic repositories.Microphone, pipeline Pipeline, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		mic:         mic,
		pipeline:    pipeline,
		constraints: repositories.DefaultCaptureConstraints(),
		maxBytes:    DefaultMaxBytes,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onError == nil {
		s.onError = func(err error) {
			logger.Warn("Capture failed", zap.Error(err))
		}
	}
	return s
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the microphone and begins buffering. It is a no-op while
// already recording.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return nil
	}
	if s.finalizing != nil {
		select {
		case <-s.finalizing:
			s.finalizing = nil
		default:
			return ErrFinalizing
		}
	}

	stream, err := s.mic.Open(ctx, s.constraints)
	if err != nil {
		s.logger.Warn("Failed to open microphone", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s.state = StateRecording
	s.stream = stream
	s.buffer = newChunkBuffer(s.maxBytes)
	s.readDone = make(chan struct{})
	s.startedAt = time.Now()

	go s.readLoop(stream, s.buffer, s.readDone)

	format := stream.Format()
	s.logger.Info("Recording started",
		zap.String("mimeType", format.MimeType),
		zap.Int("sampleRate", format.SampleRate),
		zap.Int("channels", format.Channels))
	return nil
}

// Stop releases the microphone, returns to Idle and runs the pipeline on
// the finished recording in the background. The pipeline is detached from
// ctx cancellation; use Wait to observe its completion.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return ErrNotRecording
	}

	stream, buf, readDone := s.stream, s.buffer, s.readDone
	elapsed := time.Since(s.startedAt)
	s.stream, s.buffer, s.readDone = nil, nil, nil
	s.state = StateIdle
	finalizing := make(chan struct{})
	s.finalizing = finalizing
	s.mu.Unlock()

	if err := stream.Close(); err != nil {
		s.logger.Warn("Failed to release microphone", zap.Error(err))
	}

	s.logger.Info("Recording stopped", zap.Duration("elapsed", elapsed))

	go s.finalize(context.WithoutCancel(ctx), stream.Format(), buf, readDone, finalizing)
	return nil
}

// Wait blocks until the last stopped recording has gone through the pipeline
func (s *Session) Wait() {
	s.mu.Lock()
	finalizing := s.finalizing
	s.mu.Unlock()

	if finalizing != nil {
		<-finalizing
	}
}

// Close abandons an active recording without running the pipeline
func (s *Session) Close() error {
	s.mu.Lock()
	stream := s.stream
	if s.state == StateRecording {
		s.stream, s.buffer, s.readDone = nil, nil, nil
		s.state = StateIdle
	}
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	s.logger.Info("Recording abandoned")
	return stream.Close()
}

func (s *Session) readLoop(stream repositories.MicrophoneStream, buf *chunkBuffer, done chan struct{}) {
	defer close(done)

	for {
		chunk, err := stream.ReadChunk()
		if len(chunk) > 0 {
			if appendErr := buf.Append(chunk); appendErr != nil {
				s.fail(stream, appendErr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.fail(stream, fmt.Errorf("capture: read microphone: %w", err))
			}
			return
		}
	}
}

// fail moves an active recording to Error and releases its device
func (s *Session) fail(stream repositories.MicrophoneStream, err error) {
	s.mu.Lock()
	active := s.stream == stream
	if active {
		s.state = StateError
		s.stream, s.buffer, s.readDone = nil, nil, nil
	}
	s.mu.Unlock()

	if !active {
		return
	}
	if closeErr := stream.Close(); closeErr != nil {
		s.logger.Warn("Failed to release microphone", zap.Error(closeErr))
	}
	s.logger.Error("Recording failed", zap.Error(err))
	s.onError(err)
}

func (s *Session) finalize(ctx context.Context, format repositories.StreamFormat, buf *chunkBuffer, readDone, finalizing chan struct{}) {
	defer close(finalizing)

	<-readDone
	chunks := buf.ChunkCount()
	data := buf.Flush()
	if len(data) == 0 {
		s.onError(audio.ErrEmptyRecording)
		return
	}

	blob, err := assemble(format, data)
	if err != nil {
		s.onError(err)
		return
	}

	s.logger.Debug("Recording assembled",
		zap.Int("chunks", chunks),
		zap.Int("size", blob.Len()),
		zap.String("mimeType", blob.MimeType))

	if err := s.pipeline(ctx, blob); err != nil {
		s.logger.Warn("Recording pipeline failed", zap.Error(err))
		s.onError(err)
	}
}

// assemble wraps raw PCM streams into a WAV container; container streams
// are passed through as-is
func assemble(format repositories.StreamFormat, data []byte) (audio.Blob, error) {
	if audio.NormalizeMimeType(format.MimeType) != audio.MimePCM {
		return audio.Blob{MimeType: format.MimeType, Data: data}, nil
	}

	channels := format.Channels
	if channels <= 0 {
		channels = 1
	}
	samples := audio.PCM16FromBytes(data)
	samples = samples[:len(samples)-len(samples)%channels]
	if len(samples) == 0 {
		return audio.Blob{}, audio.ErrEmptyRecording
	}

	wav, err := audio.EncodeWAV(samples, format.SampleRate, channels)
	if err != nil {
		return audio.Blob{}, fmt.Errorf("capture: wrap PCM: %w", err)
	}
	return audio.Blob{MimeType: audio.MimeWAV, Data: wav}, nil
}
