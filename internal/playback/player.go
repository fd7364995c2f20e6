// Package playback plays encoded reply audio through a lazily created,
// shared output.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain/repositories"
	"github.com/satriahrh/supermom/internal/audio"
	"github.com/satriahrh/supermom/internal/codec"
)

// ErrClosed is returned once the player has been closed
var ErrClosed = errors.New("playback: player closed")

// Player decodes base64 audio payloads and plays them one at a time. The
// output is created on first use and shared by every later call.
type Player struct {
	factory repositories.AudioOutputFactory
	codec   *codec.Encoder
	logger  *zap.Logger

	mu     sync.Mutex
	output repositories.AudioOutput
	closed bool

	// serializes playback so repeats and concurrent calls never overlap
	playMu sync.Mutex
}

// NewPlayer creates a new player
func NewPlayer(factory repositories.AudioOutputFactory, enc *codec.Encoder, logger *zap.Logger) *Player {
	return &Player{
		factory: factory,
		codec:   enc,
		logger:  logger,
	}
}

// Play plays the payload once. Failures are logged and skipped.
func (p *Player) Play(ctx context.Context, payload string) {
	p.PlayRepeated(ctx, payload, 1)
}

// PlayRepeated plays the payload n times back to back, each play starting
// after the previous one finished. n below 1 plays once.
func (p *Player) PlayRepeated(ctx context.Context, payload string, n int) {
	if n < 1 {
		n = 1
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	out, err := p.outputContext()
	if err != nil {
		p.logger.Warn("Audio output unavailable", zap.Error(err))
		return
	}

	samples, err := p.render(payload, out.SampleRate())
	if err != nil {
		p.logger.Warn("Skipping undecodable audio", zap.Int("payloadSize", len(payload)), zap.Error(err))
		return
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("Playback cancelled", zap.Int("played", i), zap.Int("repeat", n))
			return
		}
		if err := out.Play(ctx, samples); err != nil {
			p.logger.Warn("Playback failed",
				zap.Int("played", i),
				zap.Int("repeat", n),
				zap.Error(err))
			return
		}
	}

	p.logger.Debug("Playback finished", zap.Int("repeat", n), zap.Int("samples", len(samples)))
}

// Close releases the output. Later plays are skipped.
func (p *Player) Close() error {
	p.mu.Lock()
	out := p.output
	p.output = nil
	p.closed = true
	p.mu.Unlock()

	if out == nil {
		return nil
	}
	return out.Close()
}

// outputContext returns the shared output, creating it on first use
func (p *Player) outputContext() (repositories.AudioOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.output != nil {
		return p.output, nil
	}

	out, err := p.factory.NewOutput()
	if err != nil {
		return nil, fmt.Errorf("playback: open output: %w", err)
	}
	p.output = out
	p.logger.Info("Audio output created", zap.Int("sampleRate", out.SampleRate()))
	return out, nil
}

// render decodes a payload into mono float32 samples at the output rate
func (p *Player) render(payload string, rate int) ([]float32, error) {
	blob, err := p.codec.DecodeBlob(payload)
	if err != nil {
		return nil, err
	}

	buf, err := audio.Decode(blob)
	if err != nil {
		return nil, err
	}
	if buf.Frames() == 0 {
		return nil, audio.ErrEmptyRecording
	}

	mono := audio.Resample(audio.MixDown(buf), buf.SampleRate, rate)
	samples := make([]float32, len(mono))
	for i, s := range mono {
		samples[i] = float32(s)
	}
	return samples, nil
}
