package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// WAVHeader represents the canonical 44-byte header of a PCM WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// EncodeWAV encodes interleaved PCM-16 samples into WAV format
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), channels)
	}

	numChannels := uint16(channels)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV decodes a RIFF/WAVE file into normalized float samples. It walks
// the chunk list, so files with LIST or fact chunks before the data are fine.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("invalid WAV file: missing RIFF/WAVE header")
	}

	var format *wavFormat
	var pcm []byte
	foundData := false

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8

		if chunkSize < 0 || pos+chunkSize > len(data) {
			if chunkID != "data" {
				break
			}
			// Streaming writers leave the data size unset.
			chunkSize = len(data) - pos
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
			}
			var f wavFormat
			if err := binary.Read(bytes.NewReader(data[pos:pos+16]), binary.LittleEndian, &f); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if f.AudioFormat == wavFormatExtensible && chunkSize >= 26 {
				f.AudioFormat = binary.LittleEndian.Uint16(data[pos+24 : pos+26])
			}
			format = &f
		case "data":
			pcm = data[pos : pos+chunkSize]
			foundData = true
		}

		pos += chunkSize + chunkSize%2
	}

	if format == nil {
		return nil, errors.New("invalid WAV file: missing fmt chunk")
	}
	if !foundData {
		return nil, errors.New("invalid WAV file: missing data chunk")
	}
	if format.NumChannels == 0 {
		return nil, errors.New("invalid WAV file: zero channels")
	}
	if format.SampleRate == 0 {
		return nil, errors.New("invalid WAV file: zero sample rate")
	}

	sampleAt, err := sampleReader(format.AudioFormat, format.BitsPerSample)
	if err != nil {
		return nil, err
	}

	channels := int(format.NumChannels)
	width := int(format.BitsPerSample) / 8
	frameSize := channels * width
	frames := len(pcm) / frameSize

	buf := &Buffer{
		SampleRate: int(format.SampleRate),
		Channels:   make([][]float64, channels),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		frame := pcm[i*frameSize:]
		for ch := 0; ch < channels; ch++ {
			buf.Channels[ch][i] = sampleAt(frame[ch*width:])
		}
	}
	return buf, nil
}

func sampleReader(audioFormat, bits uint16) (func([]byte) float64, error) {
	switch {
	case audioFormat == wavFormatPCM && bits == 8:
		return func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }, nil
	case audioFormat == wavFormatPCM && bits == 16:
		return func(b []byte) float64 {
			return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
		}, nil
	case audioFormat == wavFormatPCM && bits == 24:
		return func(b []byte) float64 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			return float64(v) / 8388608
		}, nil
	case audioFormat == wavFormatPCM && bits == 32:
		return func(b []byte) float64 {
			return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
		}, nil
	case audioFormat == wavFormatIEEEFloat && bits == 32:
		return func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}, nil
	case audioFormat == wavFormatIEEEFloat && bits == 64:
		return func(b []byte) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}, nil
	}
	return nil, fmt.Errorf("unsupported WAV encoding: format %d, %d bits", audioFormat, bits)
}
