package notestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/starford/notekeep/internal/apperr"
	"github.com/starford/notekeep/internal/models"
	"github.com/starford/notekeep/internal/storage"
)

// Storage slots for the two sequences.
const (
	KeyActive    = "tasks"
	KeyCompleted = "completed_tasks"
)

// errNoop marks a mutation that changed nothing and must not notify.
var errNoop = errors.New("notestore: no-op")

// LoadReport describes how the last load resolved each slot.
type LoadReport struct {
	// ActiveSeeded is set when the active slot was missing or unreadable and
	// the default notes were used instead.
	ActiveSeeded bool
	// ActiveFallback and CompletedFallback are set when the stored value was
	// present but could not be parsed.
	ActiveFallback    bool
	CompletedFallback bool
}

// Fallback reports whether any slot was malformed.
func (r LoadReport) Fallback() bool {
	return r.ActiveFallback || r.CompletedFallback
}

// load reads both slots. Callers hold s.mu.
func (s *Store) load() (LoadReport, error) {
	var rep LoadReport

	active, state, err := s.readList(KeyActive)
	if err != nil {
		return rep, err
	}
	switch state {
	case slotMalformed:
		rep.ActiveFallback = true
		fallthrough
	case slotMissing:
		rep.ActiveSeeded = true
	}

	completed, state, err := s.readList(KeyCompleted)
	if err != nil {
		return rep, err
	}
	rep.CompletedFallback = state == slotMalformed

	s.lastID = max(s.lastID, maxID(active), maxID(completed))
	if rep.ActiveSeeded {
		active = s.seed()
	}
	s.active, s.completed = active, completed
	return rep, nil
}

type slotState int

const (
	slotLoaded slotState = iota
	slotMissing
	slotMalformed
)

func (s *Store) readList(key string) ([]models.Note, slotState, error) {
	raw, err := s.kv.Get(key)
	if errors.Is(err, apperr.ErrNotFound) {
		delete(s.written, key)
		return nil, slotMissing, nil
	}
	if err != nil {
		return nil, slotMissing, fmt.Errorf("notestore: read %s: %w", key, err)
	}
	s.written[key] = storage.Checksum(raw)

	var notes []models.Note
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		s.logger.Warn("notestore: malformed slot, using defaults", "key", key, "error", err)
		return nil, slotMalformed, nil
	}
	if notes == nil {
		// A stored null reads as an empty list.
		return []models.Note{}, slotLoaded, nil
	}
	for i := range notes {
		notes[i].Normalize()
	}
	return notes, slotLoaded, nil
}

// persist writes notes into key. Callers hold s.mu.
func (s *Store) persist(key string, notes []models.Note) error {
	if notes == nil {
		notes = []models.Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("notestore: encode %s: %w", key, err)
	}
	value := string(data)
	if err := s.kv.Put(key, value); err != nil {
		return fmt.Errorf("notestore: write %s: %w", key, err)
	}
	s.written[key] = storage.Checksum(value)
	return nil
}

// persistBoth writes both slots. If the second write fails the first is
// restored so the stored state matches memory again.
func (s *Store) persistBoth(active, completed []models.Note) error {
	if err := s.persist(KeyActive, active); err != nil {
		return err
	}
	if err := s.persist(KeyCompleted, completed); err != nil {
		if rbErr := s.persist(KeyActive, s.active); rbErr != nil {
			s.logger.Error("notestore: rollback failed", "key", KeyActive, "error", rbErr)
		}
		return err
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func maxID(notes []models.Note) int64 {
	var m int64
	for _, n := range notes {
		if id, err := strconv.ParseInt(n.ID, 10, 64); err == nil && id > m {
			m = id
		}
	}
	return m
}
