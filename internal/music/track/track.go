// Package track holds the metadata shape shared by the resolver, the stream
// opener and the UI layer. A track reference is just its URL; metadata is
// looked up on demand and never cached.
package track

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Track is resolved metadata for a playable item.
type Track struct {
	URL       string
	Title     string
	Author    string
	Thumbnail string
	Duration  time.Duration
}

// Candidate is one ranked search result offered for disambiguation.
type Candidate struct {
	Title    string
	Duration time.Duration
	URL      string
}

// Label renders the candidate as shown in autocomplete and select menus,
// e.g. "some song (3:41)". Discord caps choice names at 100 runes.
func (c Candidate) Label() string {
	label := c.Title
	if c.Duration > 0 {
		label = fmt.Sprintf("%s (%s)", c.Title, FormatDuration(c.Duration))
	}
	// Truncate on rune boundaries; slicing bytes can split a codepoint and
	// Discord rejects invalid UTF-8.
	if utf8.RuneCountInString(label) > 100 {
		runes := []rune(label)
		label = string(runes[:97]) + "..."
	}
	return label
}

// FormatDuration renders a duration as m:ss (or h:mm:ss past the hour).
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
