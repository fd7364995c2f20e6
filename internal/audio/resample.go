package audio

import "math"

// MixDown averages every channel into a single mono track
func MixDown(b *Buffer) []float64 {
	frames := b.Frames()
	out := make([]float64, frames)

	switch len(b.Channels) {
	case 0:
		return out
	case 1:
		copy(out, b.Channels[0])
		return out
	}

	n := float64(len(b.Channels))
	for i := 0; i < frames; i++ {
		var sum float64
		for _, ch := range b.Channels {
			sum += ch[i]
		}
		out[i] = sum / n
	}
	return out
}

// Resample converts mono samples between rates with linear interpolation.
// The output holds round(len(in) * toRate / fromRate) samples, so the same
// input always yields the same length.
func Resample(in []float64, fromRate, toRate int) []float64 {
	if len(in) == 0 || fromRate <= 0 || toRate <= 0 {
		return []float64{}
	}
	if fromRate == toRate {
		out := make([]float64, len(in))
		copy(out, in)
		return out
	}

	outLen := int(math.Round(float64(len(in)) * float64(toRate) / float64(fromRate)))
	out := make([]float64, outLen)
	step := float64(fromRate) / float64(toRate)
	last := len(in) - 1

	for i := range out {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 >= last {
			out[i] = in[last]
			continue
		}
		f := pos - float64(i0)
		out[i] = in[i0]*(1-f) + in[i0+1]*f
	}
	return out
}
