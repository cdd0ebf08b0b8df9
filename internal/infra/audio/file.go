package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileSource replays WAV recordings dropped into a directory as a PCM stream,
// each followed by a stretch of silence so the segmenter closes the
// utterance. Replayed files are renamed with a .processed suffix.
type FileSource struct {
	dir        string
	sampleRate int
	silence    time.Duration
	poll       time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	pending [][]byte
}

func NewFileSource(dir string, sampleRate int, logger *slog.Logger) *FileSource {
	return &FileSource{
		dir:        dir,
		sampleRate: sampleRate,
		silence:    500 * time.Millisecond,
		poll:       500 * time.Millisecond,
		logger:     logger,
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Start(_ context.Context) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating audio dir: %w", err)
	}
	return nil
}

func (f *FileSource) Stop() error {
	return nil
}

// NextChunk returns the next queued chunk, waiting for a new recording when
// none is queued.
func (f *FileSource) NextChunk(ctx context.Context) ([]byte, error) {
	if chunk, ok := f.pop(); ok {
		return chunk, nil
	}

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		if err := f.checkForNewFile(); err != nil {
			return nil, err
		}
		if chunk, ok := f.pop(); ok {
			return chunk, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *FileSource) pop() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, false
	}
	chunk := f.pending[0]
	f.pending = f.pending[1:]
	return chunk, true
}

func (f *FileSource) checkForNewFile() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("reading dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".wav" {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	path := filepath.Join(f.dir, names[0])
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file %s: %w", path, err)
	}
	if err := os.Rename(path, path+".processed"); err != nil {
		return fmt.Errorf("marking %s processed: %w", path, err)
	}

	pcm, err := DecodeWAV(data, f.sampleRate)
	if err != nil {
		f.logger.Warn("skipping unreadable recording", "file", path, "error", err)
		return nil
	}
	f.logger.Info("replaying recording", "file", path, "bytes", len(pcm))

	silence := make([]byte, int(float64(f.sampleRate)*f.silence.Seconds())*2)
	f.mu.Lock()
	f.pending = append(f.pending, pcm, silence)
	f.mu.Unlock()
	return nil
}
