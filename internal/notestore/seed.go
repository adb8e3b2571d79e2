package notestore

import (
	"strings"

	"github.com/starford/notekeep/internal/models"
)

// Titles used when a note is saved with neither title nor body.
const (
	DefaultNewTitle  = "New note"
	DefaultEditTitle = "Untitled note"
)

var seedNotes = []struct{ title, body string }{
	{"Buy groceries", "Milk, bread, eggs, fruit"},
	{"Do homework", "Math and physics"},
	{"Call mom", "Discuss weekend plans"},
}

// seed returns the notes shown on first launch. Callers hold s.mu.
func (s *Store) seed() []models.Note {
	out := make([]models.Note, 0, len(seedNotes))
	for _, n := range seedNotes {
		out = append(out, s.newNoteLocked(n.title, n.body))
	}
	return out
}

// DefaultTitle returns the trimmed title, or a stock title when both title
// and body are blank.
func DefaultTitle(title, body string, editing bool) string {
	title = strings.TrimSpace(title)
	if title != "" || strings.TrimSpace(body) != "" {
		return title
	}
	if editing {
		return DefaultEditTitle
	}
	return DefaultNewTitle
}
