// Package storage defines the key-value slots notes are persisted into.
package storage

import (
	"fmt"
	"regexp"
)

// KV is the interface for the local key-value namespace.
type KV interface {
	// Get returns the value stored under key, or apperr.ErrNotFound.
	Get(key string) (string, error)
	// Put durably stores value under key, replacing any previous value.
	Put(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Clear removes every key in the namespace.
	Clear() error
	// Close releases underlying resources.
	Close() error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// validKey rejects keys that could not be stored as a plain file name.
func validKey(key string) error {
	if !keyRe.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}
