package audio

import (
	"math"
	"testing"
)

func TestResample_Length(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		from, to int
		want     int
	}{
		{"2s at 48k", 96000, 48000, 16000, 32000},
		{"1s at 44.1k", 44100, 44100, 16000, 16000},
		{"odd count at 44.1k", 1001, 44100, 16000, 363},
		{"upsample 8k", 800, 8000, 16000, 1600},
		{"same rate", 123, 16000, 16000, 123},
		{"single sample", 1, 48000, 16000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resample(make([]float64, tt.n), tt.from, tt.to)
			if len(out) != tt.want {
				t.Errorf("Resample(%d samples, %d -> %d) gave %d samples, want %d",
					tt.n, tt.from, tt.to, len(out), tt.want)
			}
		})
	}
}

func TestResample_Empty(t *testing.T) {
	if out := Resample(nil, 48000, 16000); len(out) != 0 {
		t.Errorf("Expected empty output, got %d samples", len(out))
	}
	if out := Resample([]float64{1, 2}, 0, 16000); len(out) != 0 {
		t.Errorf("Expected empty output for zero source rate, got %d samples", len(out))
	}
}

func TestResample_Interpolates(t *testing.T) {
	in := []float64{0, 1, 0, -1}
	out := Resample(in, 8000, 16000)
	want := []float64{0, 0.5, 1, 0.5, 0, -0.5, -1, -1}
	if len(out) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(out))
	}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestResample_Deterministic(t *testing.T) {
	in := sine(440, 48000, 4800, 0.8)
	a := Quantize(Resample(in, 48000, 16000))
	b := Quantize(Resample(in, 48000, 16000))
	if len(a) != len(b) {
		t.Fatalf("Lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Sample %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestMixDown(t *testing.T) {
	buf := &Buffer{
		SampleRate: 16000,
		Channels: [][]float64{
			{1, 0.5, -1},
			{0, 0.5, 1},
		},
	}
	out := MixDown(buf)
	want := []float64{0.5, 0.5, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], out[i])
		}
	}

	mono := &Buffer{SampleRate: 16000, Channels: [][]float64{{0.25}}}
	out = MixDown(mono)
	out[0] = 1
	if mono.Channels[0][0] != 0.25 {
		t.Error("MixDown of a mono buffer should not alias the input")
	}
}

func sine(freq float64, rate, n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}
