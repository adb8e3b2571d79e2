package internal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/notekeep/internal/notestore"
	"github.com/starford/notekeep/internal/testutil"
)

func TestOpenStorage_Backends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		cfg       StorageConfig
		wantWatch bool
	}{
		{StorageConfig{Backend: BackendFS, Path: filepath.Join(dir, "prefs")}, true},
		{StorageConfig{Backend: BackendSQLite, Path: filepath.Join(dir, "db", "notes.db")}, false},
		{StorageConfig{Backend: BackendMemory}, false},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Backend, func(t *testing.T) {
			kv, fsys, err := openStorage(tt.cfg)
			if err != nil {
				t.Fatalf("openStorage: %v", err)
			}
			defer kv.Close()
			if (fsys != nil) != tt.wantWatch {
				t.Errorf("fs returned = %v, want %v", fsys != nil, tt.wantWatch)
			}
			if err := kv.Put(notestore.KeyActive, "[]"); err != nil {
				t.Fatalf("put: %v", err)
			}
		})
	}
}

func TestReset_ClearsStoredNotes(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage = StorageConfig{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "notes.db")}

	kv, _, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatal(err)
	}
	store, err := openStore(kv, testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(notestore.Draft{Title: "keep?"}); err != nil {
		t.Fatal(err)
	}
	kv.Close()

	if err := Reset(context.Background(), WithConfig(cfg), WithLogger(testutil.Logger())); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	kv, _, err = openStorage(cfg.Storage)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	store, err = openStore(kv, testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	// With both slots gone the next start shows the seed notes again.
	if got := store.ListActive(); len(got) != 3 || got[0].Title != "Buy groceries" {
		t.Errorf("active after reset = %+v", got)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}
}
