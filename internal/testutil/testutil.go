// Package testutil provides shared test helpers for setting up stores.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/notekeep/internal/notestore"
	"github.com/starford/notekeep/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TempFS creates a file-backed KV in a temporary directory.
func TempFS(t *testing.T) *storage.FS {
	t.Helper()
	fsys, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fsys
}

// Store opens a note store on kv, failing the test on error.
func Store(t *testing.T, kv storage.KV, opts ...notestore.Option) *notestore.Store {
	t.Helper()
	opts = append([]notestore.Option{notestore.WithLogger(Logger())}, opts...)
	store, _, err := notestore.Open(kv, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
