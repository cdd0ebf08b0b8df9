package application

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode"

	"home-hub/internal/domain"
	"home-hub/internal/fuzzy"
)

var (
	stopWords = []string{
		"turn", "set", "the", "to", "a", "is", "in", "on", "off", "open", "close",
		"start", "stop", "activate", "deactivate", "enable", "disable", "please",
		"would", "you", "can", "jarvis", "and", "of", "it", "for",
		"yeah", "i'm", "i", "kill", "my", "device", "switch",
	}
	negationWords = []string{"off", "stop", "deactivate", "disable", "kill", "end", "shutdown"}
	onWords       = []string{"on", "open", "start", "enable", "activate"}
	offWords      = []string{"off", "close", "stop", "kill", "shutdown", "disable"}
)

const (
	modeThreshold   = 85
	deviceThreshold = 70
	exactCutoff     = 99
	shortCommandLen = 3
)

// Interpreter resolves a transcript to a mode or a set of relay actions.
// It reads state snapshots only and never mutates anything.
type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Resolve tries mode names first and falls back to the labels of the relays
// in room. An empty Resolution means nothing matched.
func (in *Interpreter) Resolve(room, text string, home domain.Home, modes domain.ModeTable) domain.Resolution {
	text = NormalizeTranscript(text)
	words := strings.Fields(text)

	if mode, ok := in.MatchMode(text, modes); ok {
		return domain.Resolution{
			Mode:       &mode,
			Deactivate: containsAny(words, negationWords),
		}
	}

	r, ok := home.Room(room)
	if !ok {
		return domain.Resolution{}
	}

	candidates := in.MatchDevices(text, *r)
	if len(candidates) == 0 {
		return domain.Resolution{}
	}

	cutoff := deviceThreshold
	if candidates[0].Score == 100 {
		cutoff = exactCutoff
	}

	requested, explicit := requestedStatus(words)

	var res domain.Resolution
	for _, c := range candidates {
		if c.Score < cutoff {
			continue
		}
		relay, ok := r.Relay(c.Relay)
		if !ok {
			continue
		}

		status := requested
		if !explicit {
			status = relay.Status.Inverse()
		}

		action := domain.DeviceAction{Room: r.ID, Relay: relay.ID, Label: relay.Label, Status: status}
		if status == relay.Status {
			res.Skipped = append(res.Skipped, action)
			continue
		}
		res.Actions = append(res.Actions, action)
	}

	res.Feedback = feedbackFor(res.Actions)
	return res
}

// MatchMode returns the mode whose lowercase name best partially matches
// text, if any scores above the mode threshold. Ties keep the earlier mode.
func (in *Interpreter) MatchMode(text string, modes domain.ModeTable) (domain.Mode, bool) {
	var (
		best      domain.Mode
		bestScore int
		found     bool
	)
	for _, m := range modes {
		score := fuzzy.PartialRatio(strings.ToLower(m.Name), text)
		if score > modeThreshold && score > bestScore {
			best, bestScore, found = m, score, true
		}
	}
	return best, found
}

// MatchDevices scores every labelled relay in room against text and returns
// those at or above the device threshold, best first.
func (in *Interpreter) MatchDevices(text string, room domain.Room) []domain.Candidate {
	cleaned := cleanCommand(text)
	if cleaned == "" {
		return nil
	}

	var candidates []domain.Candidate
	for _, relay := range room.Relays {
		if relay.Label == "" {
			continue
		}
		score := scoreLabel(cleaned, strings.ToLower(relay.Label))
		if score >= deviceThreshold {
			candidates = append(candidates, domain.Candidate{Relay: relay.ID, Label: relay.Label, Score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// NormalizeTranscript lowercases text and replaces every rune other than a
// letter, digit or apostrophe with a space, collapsing runs of whitespace.
// Typographic apostrophes become ASCII so "I’m" still matches "i'm".
func NormalizeTranscript(text string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '’':
			return '\''
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}

func scoreLabel(cleaned, label string) int {
	if strings.ReplaceAll(cleaned, " ", "") == strings.ReplaceAll(label, " ", "") {
		return 100
	}
	if len(cleaned) > shortCommandLen {
		return max(fuzzy.TokenSetRatio(cleaned, label), fuzzy.TokenSortRatio(cleaned, label))
	}
	if slices.Contains(strings.Fields(label), cleaned) {
		return 100
	}
	return fuzzy.TokenSortRatio(cleaned, label)
}

func cleanCommand(text string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if !slices.Contains(stopWords, w) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func requestedStatus(words []string) (domain.Status, bool) {
	switch {
	case containsAny(words, onWords):
		return domain.StatusOn, true
	case containsAny(words, offWords):
		return domain.StatusOff, true
	default:
		return "", false
	}
}

func feedbackFor(actions []domain.DeviceAction) string {
	if len(actions) == 0 {
		return ""
	}

	last := actions[len(actions)-1]
	verb := strings.ToLower(string(last.Status))
	if len(actions) == 1 {
		return fmt.Sprintf("Okay, %s turned %s", last.Label, verb)
	}

	first := actions[0].Label
	for _, a := range actions[1:] {
		if a.Label != first {
			return fmt.Sprintf("Okay, %d devices turned %s", len(actions), verb)
		}
	}
	return fmt.Sprintf("Okay, %ss turned %s", first, verb)
}

func containsAny(words, set []string) bool {
	for _, w := range words {
		if slices.Contains(set, w) {
			return true
		}
	}
	return false
}
