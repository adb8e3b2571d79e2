package notestore

import "github.com/starford/notekeep/internal/models"

// ChangeKind names a committed store mutation.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "note.created"
	ChangeUpdated   ChangeKind = "note.updated"
	ChangeCompleted ChangeKind = "note.completed"
	ChangeDeleted   ChangeKind = "note.deleted"
	ChangeReset     ChangeKind = "store.reset"
	ChangeReloaded  ChangeKind = "store.reloaded"
)

// Change is delivered to listeners after a mutation is persisted.
type Change struct {
	Kind ChangeKind  `json:"kind"`
	List models.List `json:"list,omitempty"`
	IDs  []string    `json:"ids,omitempty"`
	// Sequence lengths after the change.
	Active    int `json:"active"`
	Completed int `json:"completed"`
}
