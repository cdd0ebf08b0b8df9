package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/youpy/go-wav"
)

// EncodeWAV wraps 16-bit mono little-endian PCM in a WAV container.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("odd PCM length %d", len(pcm))
	}

	samples := make([]wav.Sample, len(pcm)/2)
	for i := range samples {
		samples[i].Values[0] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(len(samples)), 1, uint32(sampleRate), 16)
	if err := w.WriteSamples(samples); err != nil {
		return nil, fmt.Errorf("writing samples: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV reads a PCM WAV file and returns 16-bit mono PCM at targetRate.
// Stereo is averaged to mono and the rate is converted by linear
// interpolation.
func DecodeWAV(data []byte, targetRate int) ([]byte, error) {
	r := wav.NewReader(bytes.NewReader(data))
	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("reading WAV format: %w", err)
	}
	if format.NumChannels == 0 || format.NumChannels > 2 || format.SampleRate == 0 {
		return nil, fmt.Errorf("unsupported WAV format: %d channels at %d Hz", format.NumChannels, format.SampleRate)
	}

	channels := int(format.NumChannels)
	toInt16 := sampleScaler(format.BitsPerSample)

	var mono []float64
	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading WAV samples: %w", err)
		}

		for _, sample := range samples {
			sum := 0.0
			for ch := 0; ch < channels; ch++ {
				sum += toInt16(r.IntValue(sample, uint(ch)))
			}
			mono = append(mono, sum/float64(channels))
		}
	}

	resampled := Resample(mono, int(format.SampleRate), targetRate)

	out := make([]byte, len(resampled)*2)
	for i, v := range resampled {
		v = max(math.MinInt16, min(math.MaxInt16, math.Round(v)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out, nil
}

// sampleScaler maps a raw sample of the given bit depth onto the int16 range.
// 8-bit WAV samples are unsigned.
func sampleScaler(bits uint16) func(int) float64 {
	switch {
	case bits == 8:
		return func(v int) float64 { return float64(v-128) * 256 }
	case bits > 16:
		div := float64(int(1) << (bits - 16))
		return func(v int) float64 { return float64(v) / div }
	default:
		return func(v int) float64 { return float64(v) }
	}
}

// Resample converts samples between rates by linear interpolation.
func Resample(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx] + frac*(samples[idx+1]-samples[idx])
	}
	return out
}
