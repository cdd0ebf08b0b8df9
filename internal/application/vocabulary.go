package application

import (
	"slices"
	"strings"

	"home-hub/internal/domain"
)

var commandTokens = []string{
	"turn", "switch", "on", "off", "party", "mode", "shutdown", "stop",
	"activate", "start", "execute", "set", "enable", "disable", "[unk]",
}

// BuildVocabulary returns the sorted word list a grammar-constrained
// recognizer may emit: command tokens, stop words, mode names, room id words
// and relay label words.
func BuildVocabulary(home domain.Home, modes domain.ModeTable) []string {
	set := make(map[string]struct{})
	add := func(words ...string) {
		for _, w := range words {
			if w != "" {
				set[w] = struct{}{}
			}
		}
	}

	add(commandTokens...)
	add(stopWords...)
	for _, m := range modes {
		add(strings.ToLower(m.Name))
	}
	for _, room := range home.Rooms {
		add(strings.Fields(strings.ReplaceAll(strings.ToLower(room.ID), "_", " "))...)
		for _, relay := range room.Relays {
			add(strings.Fields(strings.ToLower(relay.Label))...)
		}
	}

	vocab := make([]string, 0, len(set))
	for w := range set {
		vocab = append(vocab, w)
	}
	slices.Sort(vocab)
	return vocab
}
