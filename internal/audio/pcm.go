package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// TargetSampleRate is the rate the recognizer expects
	TargetSampleRate = 16000

	// BytesPerSecond of mono PCM16 at TargetSampleRate
	BytesPerSecond = TargetSampleRate * 2
)

// PCM16 is mono signed 16-bit audio at TargetSampleRate
type PCM16 []int16

// QuantizeSample maps a float sample to PCM16 as clamp(round(s*32768)).
// NaN maps to silence.
func QuantizeSample(s float64) int16 {
	if math.IsNaN(s) {
		return 0
	}
	v := math.Round(s * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Quantize converts float samples to PCM16
func Quantize(samples []float64) PCM16 {
	out := make(PCM16, len(samples))
	for i, s := range samples {
		out[i] = QuantizeSample(s)
	}
	return out
}

// Bytes returns the samples as little-endian bytes
func (p PCM16) Bytes() []byte {
	out := make([]byte, len(p)*2)
	for i, v := range p {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16FromBytes reads little-endian samples; a trailing odd byte is dropped
func PCM16FromBytes(b []byte) PCM16 {
	out := make(PCM16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Duration returns the playing time at TargetSampleRate
func (p PCM16) Duration() time.Duration {
	return time.Duration(len(p)) * time.Second / TargetSampleRate
}
