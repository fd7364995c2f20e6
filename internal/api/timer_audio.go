package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrTimerAudioNotFound is returned when no completion sound is configured
// or the file is missing
var ErrTimerAudioNotFound = errors.New("pomodoro audio file not found")

// TimerAudio is the completion sound served by /api/pomodoro-audio
type TimerAudio struct {
	Data        []byte
	Format      string
	RepeatTimes int
}

// TimerAudioSource loads the completion sound
type TimerAudioSource interface {
	Load(ctx context.Context) (TimerAudio, error)
}

// FileTimerAudio reads the completion sound from disk on every request so
// the file can be swapped while the server runs
type FileTimerAudio struct {
	path        string
	repeatTimes int
	logger      *zap.Logger
}

// NewFileTimerAudio creates a file-backed source. repeatTimes < 1 means 1.
func NewFileTimerAudio(path string, repeatTimes int, logger *zap.Logger) *FileTimerAudio {
	if repeatTimes < 1 {
		repeatTimes = 1
	}
	return &FileTimerAudio{path: path, repeatTimes: repeatTimes, logger: logger}
}

// Load implements TimerAudioSource
func (f *FileTimerAudio) Load(ctx context.Context) (TimerAudio, error) {
	if f.path == "" {
		return TimerAudio{}, ErrTimerAudioNotFound
	}
	if err := ctx.Err(); err != nil {
		return TimerAudio{}, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("Pomodoro audio file missing", zap.String("path", f.path))
		return TimerAudio{}, ErrTimerAudioNotFound
	}
	if err != nil {
		return TimerAudio{}, fmt.Errorf("failed to read pomodoro audio: %w", err)
	}

	return TimerAudio{
		Data:        data,
		Format:      formatFromPath(f.path),
		RepeatTimes: f.repeatTimes,
	}, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return "wav"
	default:
		return "mp3"
	}
}
