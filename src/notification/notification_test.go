package notification

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateForPrompt(t *testing.T) {
	short := "Hello"
	if got := truncateForPrompt(short); got != short {
		t.Errorf("short text changed: %q", got)
	}

	long := strings.Repeat("x", maxPromptChars+50)
	got := truncateForPrompt(long)
	if len(got) != maxPromptChars+3 {
		t.Errorf("len = %d, want %d", len(got), maxPromptChars+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got[len(got)-10:])
	}
}

func TestTruncateForPromptRuneBoundary(t *testing.T) {
	// Multi-byte runes straddling the cut must not be split.
	long := strings.Repeat("好", maxPromptChars)
	got := truncateForPrompt(long)
	if !utf8.ValidString(got) {
		t.Error("truncation produced invalid UTF-8")
	}
	if len(got) > maxPromptChars+3 {
		t.Errorf("len = %d, want <= %d", len(got), maxPromptChars+3)
	}
}
