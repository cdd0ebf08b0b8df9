package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/youpy/go-wav"

	"home-hub/internal/infra/audio"
)

func pcm16(values ...int16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func TestWAV_RoundTrip(t *testing.T) {
	in := pcm16(0, 1200, -1200, 32767, -32768, 7)

	encoded, err := audio.EncodeWAV(in, 16000)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if !bytes.HasPrefix(encoded, []byte("RIFF")) {
		t.Fatalf("missing RIFF header")
	}

	decoded, err := audio.DecodeWAV(encoded, 16000)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !bytes.Equal(decoded, in) {
		t.Errorf("round trip mismatch:\ngot  %v\nwant %v", decoded, in)
	}
}

func TestEncodeWAV_OddLength(t *testing.T) {
	if _, err := audio.EncodeWAV([]byte{1, 2, 3}, 16000); err == nil {
		t.Error("expected error for odd PCM length")
	}
}

func TestDecodeWAV_StereoResampled(t *testing.T) {
	samples := make([]wav.Sample, 800)
	for i := range samples {
		samples[i].Values = [2]int{1000, 3000}
	}
	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(len(samples)), 2, 8000, 16)
	if err := w.WriteSamples(samples); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	decoded, err := audio.DecodeWAV(buf.Bytes(), 16000)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got := len(decoded) / 2; got != 1600 {
		t.Errorf("samples: got %d, want 1600", got)
	}
	if got := int16(binary.LittleEndian.Uint16(decoded[100:])); got != 2000 {
		t.Errorf("downmixed sample: got %d, want 2000", got)
	}
}

func TestDecodeWAV_Garbage(t *testing.T) {
	if _, err := audio.DecodeWAV([]byte("definitely not a wav file"), 16000); err == nil {
		t.Error("expected error")
	}
}

func TestResample(t *testing.T) {
	out := audio.Resample([]float64{0, 10, 20, 30}, 8000, 16000)
	want := []float64{0, 5, 10, 15, 20, 25, 30, 30}
	if len(out) != len(want) {
		t.Fatalf("length: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], want[i])
		}
	}

	same := []float64{1, 2, 3}
	if got := audio.Resample(same, 16000, 16000); len(got) != 3 {
		t.Errorf("same rate changed length: %v", got)
	}
}
