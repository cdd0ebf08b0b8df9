// Package vad classifies 16-bit PCM frames as speech or silence.
package vad

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

const DefaultThreshold = 500

var (
	supportedRates     = []int{8000, 16000, 32000, 48000}
	supportedDurations = []int{10, 20, 30}
)

// EnergyDetector flags a frame as speech when its RMS amplitude reaches the
// threshold. Frames must be 10, 20 or 30 ms of mono 16-bit little-endian
// PCM at 8, 16, 32 or 48 kHz. It keeps no state between frames, so one
// detector can serve every room.
type EnergyDetector struct {
	threshold float64
}

func NewEnergyDetector(threshold float64) *EnergyDetector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &EnergyDetector{threshold: threshold}
}

func (d *EnergyDetector) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := validFrame(len(frame), sampleRate); err != nil {
		return false, err
	}
	return RMS(frame) >= d.threshold, nil
}

// RMS returns the root mean square amplitude of 16-bit little-endian PCM.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

func validFrame(length, sampleRate int) error {
	if !slices.Contains(supportedRates, sampleRate) {
		return fmt.Errorf("unsupported sample rate %d", sampleRate)
	}
	bytesPerMs := sampleRate / 1000 * 2
	if length%bytesPerMs != 0 || !slices.Contains(supportedDurations, length/bytesPerMs) {
		return fmt.Errorf("frame of %d bytes is not 10, 20 or 30 ms at %d Hz", length, sampleRate)
	}
	return nil
}
