// Package models defines the domain types for notekeep.
package models

import "time"

// Note is a single task/note record as persisted in the key-value slots.
// JSON keys match the on-device layout so existing data loads unchanged.
type Note struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Body      string  `json:"description"`
	Completed bool    `json:"completed"`
	CreatedAt int64   `json:"createdAt"`
	ImageRef  *string `json:"imageUri,omitempty"`
}

// Created returns the creation time.
func (n Note) Created() time.Time {
	return time.UnixMilli(n.CreatedAt)
}

// HasLegacyImage reports whether the legacy single-image reference is set.
func (n Note) HasLegacyImage() bool {
	return NormalizeImageRef(n.ImageRef) != nil
}

// Normalize coerces legacy field values in place.
func (n *Note) Normalize() {
	n.ImageRef = NormalizeImageRef(n.ImageRef)
}

// NormalizeImageRef maps the absent-like values nil, "" and "null" to nil.
func NormalizeImageRef(ref *string) *string {
	if ref == nil || *ref == "" || *ref == "null" {
		return nil
	}
	return ref
}

// List identifies one of the two note sequences.
type List string

const (
	ListActive    List = "active"
	ListCompleted List = "completed"
)

// Valid reports whether l names a known sequence.
func (l List) Valid() bool {
	return l == ListActive || l == ListCompleted
}
