package fuzzy_test

import (
	"testing"

	"home-hub/internal/fuzzy"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"abc", "abc", 100},
		{"", "", 100},
		{"abc", "", 0},
		{"main light", "main lights", 95},
		{"fan", "tv", 0},
	}

	for _, tt := range tests {
		if got := fuzzy.Ratio(tt.a, tt.b); got != tt.want {
			t.Errorf("Ratio(%q, %q): got %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPartialRatio(t *testing.T) {
	if got := fuzzy.PartialRatio("party", "activate party mode"); got != 100 {
		t.Errorf("embedded name: got %d, want 100", got)
	}
	if got := fuzzy.PartialRatio("activate party mode", "party"); got != 100 {
		t.Errorf("argument order: got %d, want 100", got)
	}
	if got := fuzzy.PartialRatio("party", "start the pity"); got > 85 {
		t.Errorf("unrelated text scored %d, want <= 85", got)
	}
	if got := fuzzy.PartialRatio("", ""); got != 100 {
		t.Errorf("empty strings: got %d, want 100", got)
	}
	if got := fuzzy.PartialRatio("movie", ""); got != 0 {
		t.Errorf("one empty string: got %d, want 0", got)
	}
}

func TestTokenSortRatio(t *testing.T) {
	if got := fuzzy.TokenSortRatio("light main", "Main Light!"); got != 100 {
		t.Errorf("reordered words: got %d, want 100", got)
	}
	if got := fuzzy.TokenSortRatio("tv", "television"); got >= 70 {
		t.Errorf("abbreviation scored %d, want < 70", got)
	}
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  int
		max  int
	}{
		{"subset of label", "fan", "ceiling fan", 100, 100},
		{"same words", "main light", "light main", 100, 100},
		{"different qualifier", "kitchen fan", "ceiling fan", 0, 69},
		{"empty side", "", "fan", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fuzzy.TokenSetRatio(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("TokenSetRatio(%q, %q): got %d, want within [%d, %d]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestProcess(t *testing.T) {
	if got := fuzzy.Process("  Hello, World! "); got != "hello  world" {
		t.Errorf("Process: got %q, want %q", got, "hello  world")
	}
	if got := fuzzy.Process("Café_2"); got != "caf_2" {
		t.Errorf("Process non-ascii: got %q, want %q", got, "caf_2")
	}
}
