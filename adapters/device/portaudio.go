package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain/repositories"
	"github.com/satriahrh/supermom/internal/audio"
)

const (
	defaultFramesPerBuffer = 1024
	defaultOutputRate      = 48000
)

// Initialize starts the PortAudio host. Every successful call must be paired
// with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio host
func Terminate() error {
	return portaudio.Terminate()
}

// Microphone opens the default input device. PortAudio has no echo
// cancellation or noise suppression; those constraints are ignored.
type Microphone struct {
	framesPerBuffer int
	logger          *zap.Logger
}

var _ repositories.Microphone = (*Microphone)(nil)

// NewMicrophone creates a microphone on the default input device
func NewMicrophone(logger *zap.Logger) *Microphone {
	return &Microphone{
		framesPerBuffer: defaultFramesPerBuffer,
		logger:          logger,
	}
}

// Open starts capturing. The device is held until the stream is closed.
func (m *Microphone) Open(ctx context.Context, constraints repositories.CaptureConstraints) (repositories.MicrophoneStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	channels := constraints.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := constraints.SampleRate
	if rate <= 0 {
		rate = audio.TargetSampleRate
	}

	buf := make([]int16, m.framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(rate), m.framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	m.logger.Info("Microphone opened",
		zap.Int("sampleRate", rate),
		zap.Int("channels", channels),
		zap.Int("framesPerBuffer", m.framesPerBuffer))

	return &micStream{
		stream: stream,
		buf:    buf,
		format: repositories.StreamFormat{
			MimeType:   audio.MimePCM,
			SampleRate: rate,
			Channels:   channels,
		},
		logger: m.logger,
	}, nil
}

type micStream struct {
	stream *portaudio.Stream
	buf    []int16
	format repositories.StreamFormat
	logger *zap.Logger

	// readMu keeps Close from tearing the stream down under a blocked Read
	readMu sync.Mutex
	mu     sync.Mutex
	closed bool
}

func (s *micStream) Format() repositories.StreamFormat {
	return s.format
}

func (s *micStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *micStream) ReadChunk() ([]byte, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if s.isClosed() {
		return nil, io.EOF
	}

	if err := s.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			s.logger.Debug("Input overflowed, samples dropped")
		} else {
			return nil, fmt.Errorf("failed to read input stream: %w", err)
		}
	}
	return audio.PCM16(s.buf).Bytes(), nil
}

func (s *micStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.readMu.Lock()
	defer s.readMu.Unlock()

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("Microphone released")
	return errors.Join(errs...)
}

// SpeakerFactory opens mono float32 outputs on the default output device
type SpeakerFactory struct {
	sampleRate      int
	framesPerBuffer int
	logger          *zap.Logger
}

var _ repositories.AudioOutputFactory = (*SpeakerFactory)(nil)

// NewSpeakerFactory creates outputs at sampleRate, 48 kHz when zero
func NewSpeakerFactory(sampleRate int, logger *zap.Logger) *SpeakerFactory {
	if sampleRate <= 0 {
		sampleRate = defaultOutputRate
	}
	return &SpeakerFactory{
		sampleRate:      sampleRate,
		framesPerBuffer: defaultFramesPerBuffer,
		logger:          logger,
	}
}

// NewOutput opens and starts an output stream
func (f *SpeakerFactory) NewOutput() (repositories.AudioOutput, error) {
	buf := make([]float32, f.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(f.sampleRate), f.framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	f.logger.Info("Audio output opened", zap.Int("sampleRate", f.sampleRate))
	return &speaker{stream: stream, buf: buf, sampleRate: f.sampleRate}, nil
}

type speaker struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	buf        []float32
	sampleRate int
	closed     bool
}

func (s *speaker) SampleRate() int {
	return s.sampleRate
}

// Play writes samples one buffer at a time; the last buffer is padded with
// silence.
func (s *speaker) Play(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("audio output closed")
	}

	for off := 0; off < len(samples); off += len(s.buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(s.buf, samples[off:])
		clear(s.buf[n:])
		if err := s.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("failed to write output stream: %w", err)
		}
	}
	return nil
}

func (s *speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
