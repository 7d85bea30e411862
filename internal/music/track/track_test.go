package track

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestLabel(t *testing.T) {
	c := Candidate{Title: "one", Duration: 61 * time.Second}
	if got := c.Label(); got != "one (1:01)" {
		t.Errorf("Label() = %q, want %q", got, "one (1:01)")
	}

	c = Candidate{Title: "two"}
	if got := c.Label(); got != "two" {
		t.Errorf("Label() without duration = %q, want bare title", got)
	}
}

func TestLabel_TruncatesLongTitles(t *testing.T) {
	c := Candidate{Title: strings.Repeat("x", 150)}
	got := c.Label()
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("Label() length = %d runes, want 100", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Label() = %q, want ellipsis suffix", got)
	}
}

func TestLabel_TruncatesOnRuneBoundary(t *testing.T) {
	c := Candidate{Title: strings.Repeat("曲", 120)}
	got := c.Label()
	if !utf8.ValidString(got) {
		t.Fatalf("Label() produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("Label() length = %d runes, want 100", n)
	}
	if !strings.HasPrefix(got, "曲曲曲") || !strings.HasSuffix(got, "...") {
		t.Errorf("Label() = %q, want truncated title with ellipsis", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{91 * time.Second, "1:31"},
		{5 * time.Second, "0:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
