package repositories

import "context"

// SynthesizedAudio is encoded speech ready to ship to a client
type SynthesizedAudio struct {
	Data   []byte
	Format string // "mp3" or "wav"
}

type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) (SynthesizedAudio, error)
}
