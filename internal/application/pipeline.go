package application

import (
	"context"
	"log/slog"
	"strings"

	"home-hub/internal/domain"
	"home-hub/internal/metrics"
)

// VoicePipeline takes one utterance or transcript through transcription,
// interpretation and execution. Failures end the pipeline for that input and
// are only logged.
type VoicePipeline struct {
	state       *StateStore
	modes       *ModeRepository
	interpreter *Interpreter
	stt         Transcriber
	exec        *Executor
	log         *CommandLog
	sampleRate  int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewVoicePipeline(
	state *StateStore,
	modes *ModeRepository,
	interpreter *Interpreter,
	stt Transcriber,
	exec *Executor,
	log *CommandLog,
	sampleRate int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *VoicePipeline {
	return &VoicePipeline{
		state:       state,
		modes:       modes,
		interpreter: interpreter,
		stt:         stt,
		exec:        exec,
		log:         log,
		sampleRate:  sampleRate,
		metrics:     m,
		logger:      logger,
	}
}

func (p *VoicePipeline) HandleUtterance(ctx context.Context, room string, pcm []byte) {
	if len(pcm) == 0 || !p.state.HasRoom(room) {
		p.metrics.Utterance("dropped")
		return
	}

	modes := p.loadModes(ctx)
	vocabulary := BuildVocabulary(p.state.Snapshot(), modes)

	p.logger.Info("transcribing utterance", "room", room, "bytes", len(pcm), "vocabulary", len(vocabulary))
	text, err := p.stt.Transcribe(ctx, pcm, p.sampleRate, vocabulary)
	if err != nil {
		p.logger.Error("transcribing", "room", room, "error", err)
		p.log.Recordf("[VOSK] Transcription failed in %s: %v", room, err)
		p.metrics.Utterance("failed")
		return
	}

	text = strings.TrimSpace(text)
	if NormalizeTranscript(text) == "" {
		p.logger.Info("empty transcript", "room", room)
		p.log.Recordf("[VOSK] Heard nothing in %s.", room)
		p.metrics.Utterance("empty")
		return
	}

	p.log.Recordf("[VOSK] Heard in %s: \"%s\"", room, text)
	p.handle(ctx, room, text, modes)
}

// HandleText interprets text as if it had been heard in room and executes
// the result. It returns what the text resolved to.
func (p *VoicePipeline) HandleText(ctx context.Context, room, text string) domain.Resolution {
	return p.handle(ctx, room, strings.TrimSpace(text), p.loadModes(ctx))
}

func (p *VoicePipeline) handle(ctx context.Context, room, text string, modes domain.ModeTable) domain.Resolution {
	command := NormalizeTranscript(text)
	res := p.interpreter.Resolve(room, command, p.state.Snapshot(), modes)

	if res.IsMode() {
		p.log.Recordf("[VOICE] Matched Mode: '%s' (Negative: %t)", res.Mode.Name, res.Deactivate)
		p.metrics.Utterance("mode")
		if err := p.exec.ExecuteMode(ctx, *res.Mode, res.Deactivate); err != nil {
			p.logger.Error("executing mode", "mode", res.Mode.Name, "error", err)
		}
		return res
	}

	for _, skipped := range res.Skipped {
		p.log.Recordf("[SKIPPED] %s is already %s", skipped.Label, skipped.Status)
	}

	if len(res.Actions) == 0 {
		if len(res.Skipped) == 0 {
			p.log.Recordf("[IGNORED] No matching device for '%s'.", command)
			p.metrics.Utterance("ignored")
		} else {
			p.metrics.Utterance("skipped")
		}
		return res
	}

	if _, err := p.exec.ExecuteActions(ctx, res); err != nil {
		p.logger.Error("executing actions", "room", room, "error", err)
	}
	p.metrics.Utterance("executed")
	return res
}

func (p *VoicePipeline) loadModes(ctx context.Context) domain.ModeTable {
	modes, err := p.modes.Load(ctx)
	if err != nil {
		p.logger.Error("loading modes", "error", err)
		return nil
	}
	return modes
}
