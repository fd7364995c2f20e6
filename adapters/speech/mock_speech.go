package speech

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain/repositories"
	"github.com/satriahrh/supermom/internal/audio"
)

const (
	mockSampleRate   = 16000
	mockToneHz       = 440
	mockPerRune      = 60 // milliseconds of tone per character
	mockMaxMillis    = 4000
	mockAmplitude    = 0.2
	mockFadeDuration = 10 // milliseconds
)

// MockTextToSpeech is a placeholder implementation for text-to-speech. It
// answers with a WAV sine tone whose length follows the text length, so the
// client playback path runs without a TTS account.
type MockTextToSpeech struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{
		logger: logger,
	}
}

// Synthesize implements repositories.TextToSpeech
func (t *MockTextToSpeech) Synthesize(ctx context.Context, text string) (repositories.SynthesizedAudio, error) {
	if err := ctx.Err(); err != nil {
		return repositories.SynthesizedAudio{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return repositories.SynthesizedAudio{}, fmt.Errorf("text cannot be empty")
	}

	millis := min(utf8.RuneCountInString(text)*mockPerRune, mockMaxMillis)
	samples := tone(mockSampleRate*millis/1000, mockSampleRate)

	data, err := audio.EncodeWAV(samples, mockSampleRate, 1)
	if err != nil {
		return repositories.SynthesizedAudio{}, err
	}

	t.logger.Info("Processing text-to-speech",
		zap.Int("textLength", len(text)),
		zap.Int("millis", millis))

	return repositories.SynthesizedAudio{Data: data, Format: "wav"}, nil
}

// tone renders a faded sine so clips do not click at their edges
func tone(n, rate int) audio.PCM16 {
	fade := rate * mockFadeDuration / 1000
	out := make([]float64, n)
	for i := range out {
		gain := mockAmplitude
		if i < fade {
			gain *= float64(i) / float64(fade)
		} else if n-i < fade {
			gain *= float64(n-i) / float64(fade)
		}
		out[i] = gain * math.Sin(2*math.Pi*mockToneHz*float64(i)/float64(rate))
	}
	return audio.Quantize(out)
}
