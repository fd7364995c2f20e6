package audio

import (
	"context"

	"go.uber.org/zap"
)

// Transcoder turns captured blobs into mono PCM16 at TargetSampleRate
type Transcoder struct {
	targetRate int
	logger     *zap.Logger
}

// NewTranscoder creates a new transcoder
func NewTranscoder(logger *zap.Logger) *Transcoder {
	return &Transcoder{
		targetRate: TargetSampleRate,
		logger:     logger,
	}
}

// Transcode decodes, mixes down, resamples and quantizes a recording
func (t *Transcoder) Transcode(ctx context.Context, blob Blob) (PCM16, error) {
	if blob.Len() == 0 {
		return nil, ErrEmptyRecording
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := Decode(blob)
	if err != nil {
		t.logger.Warn("Failed to decode recording",
			zap.String("mimeType", blob.MimeType),
			zap.Int("size", blob.Len()),
			zap.Error(err))
		return nil, err
	}
	if buf.Frames() == 0 {
		return nil, ErrEmptyRecording
	}

	mono := MixDown(buf)
	pcm := Quantize(Resample(mono, buf.SampleRate, t.targetRate))

	t.logger.Debug("Transcoded recording",
		zap.String("mimeType", blob.MimeType),
		zap.Int("sourceRate", buf.SampleRate),
		zap.Int("channels", len(buf.Channels)),
		zap.Int("samples", len(pcm)),
		zap.Duration("duration", pcm.Duration()))

	return pcm, nil
}
