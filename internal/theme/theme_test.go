package theme

import (
	"strings"
	"testing"
)

func TestStateColor(t *testing.T) {
	tests := map[string]string{
		"active":   string(ColorActive),
		"warning":  string(ColorWarning),
		"critical": string(ColorCritical),
		"expired":  string(ColorExpired),
		"bogus":    string(ColorDimmed),
	}
	for state, want := range tests {
		if got := string(StateColor(state)); got != want {
			t.Errorf("StateColor(%q) = %s, want %s", state, got, want)
		}
	}
}

func TestSeverityGlyph(t *testing.T) {
	if SeverityGlyph("error") != "✗" {
		t.Error("error glyph")
	}
	if SeverityGlyph("") != "·" {
		t.Error("unknown glyph")
	}
}

func TestStateBadgeContainsName(t *testing.T) {
	if !strings.Contains(StateBadge("critical"), "critical") {
		t.Error("badge should contain the state name")
	}
}
