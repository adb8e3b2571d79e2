// Package notestore keeps the active and completed note sequences and persists
// each of them into its own key-value slot.
package notestore

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/starford/notekeep/internal/apperr"
	"github.com/starford/notekeep/internal/models"
	"github.com/starford/notekeep/internal/storage"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load fallbacks and rollback failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithListener registers fn to be called after every committed change.
// fn runs outside the store lock and must not block.
func WithListener(fn func(Change)) Option {
	return func(s *Store) { s.listeners = append(s.listeners, fn) }
}

// Store owns both note sequences. All methods are safe for concurrent use;
// every mutation and its persistence happen under one lock.
type Store struct {
	mu        sync.Mutex
	kv        storage.KV
	logger    *slog.Logger
	now       func() time.Time
	listeners []func(Change)

	active    []models.Note
	completed []models.Note
	lastID    int64
	written   map[string]string // key -> checksum of the last value we wrote
}

// Open loads both sequences from kv. Missing or malformed slots fall back to
// defaults; the report says which. Only storage I/O failures are returned.
func Open(kv storage.KV, opts ...Option) (*Store, LoadReport, error) {
	s := &Store{
		kv:      kv,
		logger:  slog.Default(),
		now:     time.Now,
		written: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rep, err := s.load()
	if err != nil {
		return nil, rep, err
	}
	return s, rep, nil
}

// ListActive returns a copy of the active sequence, most recent first.
func (s *Store) ListActive() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.active)
}

// ListCompleted returns a copy of the completed sequence, most recently
// completed first.
func (s *Store) ListCompleted() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.completed)
}

// Active returns the note at index in the active sequence.
func (s *Store) Active(index int) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkIndex(index, len(s.active)); err != nil {
		return models.Note{}, err
	}
	return s.active[index], nil
}

// Completed returns the note at index in the completed sequence.
func (s *Store) Completed(index int) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkIndex(index, len(s.completed)); err != nil {
		return models.Note{}, err
	}
	return s.completed[index], nil
}

// Get returns the note at index in the named sequence.
func (s *Store) Get(list models.List, index int) (models.Note, error) {
	switch list {
	case models.ListActive:
		return s.Active(index)
	case models.ListCompleted:
		return s.Completed(index)
	default:
		return models.Note{}, fmt.Errorf("notestore: unknown list %q: %w", list, apperr.ErrInvalidInput)
	}
}

// NewNote returns an unsaved note with a fresh id and creation time.
func (s *Store) NewNote(title, body string) models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newNoteLocked(title, body)
}

func (s *Store) newNoteLocked(title, body string) models.Note {
	ms := s.now().UnixMilli()
	id := ms
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return models.Note{
		ID:        formatID(id),
		Title:     title,
		Body:      body,
		CreatedAt: ms,
	}
}

// Add inserts note at the front of the active sequence.
func (s *Store) Add(note models.Note) error {
	return s.mutate(func() (Change, error) {
		note.Normalize()
		note.Completed = false
		next := make([]models.Note, 0, len(s.active)+1)
		next = append(next, note)
		next = append(next, s.active...)
		if err := s.persist(KeyActive, next); err != nil {
			return Change{}, err
		}
		s.active = next
		return s.change(ChangeCreated, models.ListActive, note.ID), nil
	})
}

// Update replaces the note at index in the active sequence.
func (s *Store) Update(index int, note models.Note) error {
	return s.mutate(func() (Change, error) {
		if err := checkIndex(index, len(s.active)); err != nil {
			return Change{}, err
		}
		note.Normalize()
		next := slices.Clone(s.active)
		next[index] = note
		if err := s.persist(KeyActive, next); err != nil {
			return Change{}, err
		}
		s.active = next
		return s.change(ChangeUpdated, models.ListActive, note.ID), nil
	})
}

// CompleteMany moves the notes at the given active positions to the front of
// the completed sequence. Positions are processed from highest to lowest, so
// the lowest position ends up first in completed. Both slots are written once.
func (s *Store) CompleteMany(indices []int) error {
	return s.mutate(func() (Change, error) {
		order, err := descending(indices, len(s.active))
		if err != nil {
			return Change{}, err
		}
		if len(order) == 0 {
			return Change{}, errNoop
		}
		active := slices.Clone(s.active)
		completed := slices.Clone(s.completed)
		ids := make([]string, 0, len(order))
		for _, i := range order {
			note := active[i]
			note.Completed = true
			completed = slices.Insert(completed, 0, note)
			active = slices.Delete(active, i, i+1)
			ids = append(ids, note.ID)
		}
		if err := s.persistBoth(active, completed); err != nil {
			return Change{}, err
		}
		s.active, s.completed = active, completed
		return s.change(ChangeCompleted, models.ListActive, ids...), nil
	})
}

// DeleteMany removes the notes at the given active positions.
func (s *Store) DeleteMany(indices []int) error {
	return s.deleteFrom(models.ListActive, indices)
}

// DeleteCompletedMany removes the notes at the given completed positions.
func (s *Store) DeleteCompletedMany(indices []int) error {
	return s.deleteFrom(models.ListCompleted, indices)
}

// Delete removes positions from the named sequence.
func (s *Store) Delete(list models.List, indices []int) error {
	if !list.Valid() {
		return fmt.Errorf("notestore: unknown list %q: %w", list, apperr.ErrInvalidInput)
	}
	return s.deleteFrom(list, indices)
}

func (s *Store) deleteFrom(list models.List, indices []int) error {
	return s.mutate(func() (Change, error) {
		key, seq := KeyActive, s.active
		if list == models.ListCompleted {
			key, seq = KeyCompleted, s.completed
		}
		order, err := descending(indices, len(seq))
		if err != nil {
			return Change{}, err
		}
		if len(order) == 0 {
			return Change{}, errNoop
		}
		next := slices.Clone(seq)
		ids := make([]string, 0, len(order))
		for _, i := range order {
			ids = append(ids, next[i].ID)
			next = slices.Delete(next, i, i+1)
		}
		if err := s.persist(key, next); err != nil {
			return Change{}, err
		}
		if list == models.ListCompleted {
			s.completed = next
		} else {
			s.active = next
		}
		return s.change(ChangeDeleted, list, ids...), nil
	})
}

// ClearAll removes both slots and empties both sequences. If the backend
// fails part way, both slots are rewritten from memory.
func (s *Store) ClearAll() error {
	return s.mutate(func() (Change, error) {
		if err := s.kv.Clear(); err != nil {
			if rbErr := s.persistBoth(s.active, s.completed); rbErr != nil {
				s.logger.Error("notestore: restore after failed clear", "error", rbErr)
			}
			return Change{}, fmt.Errorf("notestore: clear: %w", err)
		}
		clear(s.written)
		s.active, s.completed = nil, nil
		return s.change(ChangeReset, ""), nil
	})
}

// Reload re-reads both slots, replacing the in-memory sequences.
func (s *Store) Reload() (LoadReport, error) {
	var rep LoadReport
	err := s.mutate(func() (Change, error) {
		var err error
		rep, err = s.load()
		if err != nil {
			return Change{}, err
		}
		return s.change(ChangeReloaded, ""), nil
	})
	return rep, err
}

// LastWritten returns the checksum of the value this store last wrote to key.
func (s *Store) LastWritten(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written[key]
}

func (s *Store) mutate(fn func() (Change, error)) error {
	s.mu.Lock()
	c, err := fn()
	s.mu.Unlock()
	if err == errNoop {
		return nil
	}
	if err != nil {
		return err
	}
	for _, l := range s.listeners {
		l(c)
	}
	return nil
}

func (s *Store) change(kind ChangeKind, list models.List, ids ...string) Change {
	return Change{
		Kind:      kind,
		List:      list,
		IDs:       ids,
		Active:    len(s.active),
		Completed: len(s.completed),
	}
}

func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("notestore: index %d, length %d: %w", index, n, apperr.ErrIndexOutOfRange)
	}
	return nil
}

// descending validates every index against n, drops duplicates and returns
// them highest first so each removal leaves the remaining positions intact.
func descending(indices []int, n int) ([]int, error) {
	for _, i := range indices {
		if err := checkIndex(i, n); err != nil {
			return nil, err
		}
	}
	out := slices.Clone(indices)
	slices.Sort(out)
	out = slices.Compact(out)
	slices.Reverse(out)
	return out, nil
}
