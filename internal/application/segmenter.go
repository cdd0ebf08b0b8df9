package application

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

type SegmenterConfig struct {
	SampleRate    int
	Gain          float64
	FrameDuration time.Duration
	MinUtterance  time.Duration
}

func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SampleRate:    16000,
		Gain:          4.0,
		FrameDuration: 30 * time.Millisecond,
		MinUtterance:  100 * time.Millisecond,
	}
}

// FrameBytes is the size of one analysis frame of 16-bit mono PCM.
func (c SegmenterConfig) FrameBytes() int {
	return int(float64(c.SampleRate)*c.FrameDuration.Seconds()) * 2
}

func (c SegmenterConfig) MinUtteranceBytes() int {
	return int(float64(c.SampleRate)*c.MinUtterance.Seconds()) * 2
}

// Segmenter cuts one room's PCM stream into utterances. Frames are
// classified by the detector; an utterance ends at the first silent frame
// after speech and is dispatched only if it is longer than the minimum
// utterance length.
type Segmenter struct {
	mu       sync.Mutex
	room     string
	cfg      SegmenterConfig
	detector SpeechDetector
	dispatch func(room string, utterance []byte)
	log      *CommandLog
	logger   *slog.Logger

	buffer   []byte
	speech   []byte
	speaking bool
}

func NewSegmenter(
	room string,
	cfg SegmenterConfig,
	detector SpeechDetector,
	log *CommandLog,
	dispatch func(room string, utterance []byte),
	logger *slog.Logger,
) *Segmenter {
	return &Segmenter{
		room:     room,
		cfg:      cfg,
		detector: detector,
		dispatch: dispatch,
		log:      log,
		logger:   logger,
	}
}

func (s *Segmenter) Feed(chunk []byte) {
	boosted, err := ApplyGain(chunk, s.cfg.Gain)
	if err != nil {
		s.logger.Debug("gain skipped", "room", s.room, "error", err)
		boosted = chunk
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frameSize := s.cfg.FrameBytes()
	s.buffer = append(s.buffer, boosted...)
	for len(s.buffer) >= frameSize {
		frame := s.buffer[:frameSize]

		speech, err := s.detector.IsSpeech(frame, s.cfg.SampleRate)
		if err != nil {
			s.logger.Debug("speech detection failed", "room", s.room, "error", err)
		} else {
			s.classify(frame, speech)
		}
		s.buffer = s.buffer[frameSize:]
	}
	if len(s.buffer) == 0 {
		s.buffer = nil
	}
}

func (s *Segmenter) classify(frame []byte, speech bool) {
	switch {
	case speech:
		if !s.speaking {
			s.speaking = true
			s.log.Recordf("[VAD] Speech detected in %s.", s.room)
		}
		s.speech = append(s.speech, frame...)
	case s.speaking:
		utterance := s.speech
		s.speaking = false
		s.speech = nil
		if len(utterance) > s.cfg.MinUtteranceBytes() {
			s.log.Recordf("[VAD] Processing command from %s...", s.room)
			s.dispatch(s.room, utterance)
		}
	}
}

func (s *Segmenter) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// ApplyGain multiplies 16-bit little-endian samples by gain, saturating at
// the int16 bounds. It returns a new buffer.
func ApplyGain(pcm []byte, gain float64) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("odd PCM length %d", len(pcm))
	}

	out := make([]byte, len(pcm))
	for i := 0; i < len(pcm); i += 2 {
		v := math.Floor(float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) * gain)
		v = max(math.MinInt16, min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(v)))
	}
	return out, nil
}
