package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNoTimerAudio is returned when the server sends a chime without audio
var ErrNoTimerAudio = errors.New("timer audio response has no audio")

// TimerChime plays the server's timer-completion audio
type TimerChime struct {
	source TimerAudioSource
	player Player
	logger *zap.Logger
}

// NewTimerChime creates a new timer chime
func NewTimerChime(source TimerAudioSource, player Player, logger *zap.Logger) *TimerChime {
	return &TimerChime{
		source: source,
		player: player,
		logger: logger,
	}
}

// Ring fetches the chime and plays it the number of times the server asks
// for, each play after the previous one finished
func (c *TimerChime) Ring(ctx context.Context) error {
	resp, err := c.source.FetchTimerAudio(ctx)
	if err != nil {
		c.logger.Warn("Failed to fetch timer audio", zap.Error(err))
		return err
	}
	if resp.Audio == "" {
		return ErrNoTimerAudio
	}

	repeat := resp.RepeatTimes
	if repeat < 1 {
		repeat = 1
	}

	c.logger.Info("Timer finished", zap.Int("repeat", repeat), zap.String("format", resp.Format))
	c.player.PlayRepeated(ctx, resp.Audio, repeat)
	return nil
}
