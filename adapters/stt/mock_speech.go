package stt

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain/repositories"
)

// silenceRMS is the PCM16 level under which the mock hears nothing
const silenceRMS = 200

// MockSpeechToText is a placeholder implementation for speech recognition.
// Silent LINEAR16 input yields no text, anything else a canned sentence.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	if rms(audioData) < silenceRMS {
		return "", nil
	}

	// Longer recordings get longer sentences.
	seconds := float64(len(audioData)) / float64(2*max(config.SampleRate, 1))
	switch {
	case seconds > 4:
		return "I slept badly again and I feel a bit overwhelmed today.", nil
	case seconds > 1:
		return "What should I eat for lunch?", nil
	default:
		return "Hello", nil
	}
}

func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
