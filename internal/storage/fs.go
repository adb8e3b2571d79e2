package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/notekeep/internal/apperr"
)

const fileExt = ".json"

// FS implements KV with one file per key inside a directory.
type FS struct {
	root string // absolute path to the preferences directory
}

// NewFS creates a new FS store rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute directory backing the store.
func (f *FS) Root() string {
	return f.root
}

// Path returns the file that holds key.
func (f *FS) Path(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.root, key+fileExt), nil
}

// KeyOf maps a file path inside the root back to its key.
func (f *FS) KeyOf(path string) (string, bool) {
	if filepath.Dir(path) != f.root {
		return "", false
	}
	name := filepath.Base(path)
	if !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
		return "", false
	}
	key := strings.TrimSuffix(name, fileExt)
	if validKey(key) != nil {
		return "", false
	}
	return key, true
}

// Get reads the value stored under key.
func (f *FS) Get(key string) (string, error) {
	p, err := f.Path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.ErrNotFound
		}
		return "", fmt.Errorf("storage: read %s: %w", key, err)
	}
	return string(data), nil
}

// Put atomically writes value: tmp file → fsync → rename.
func (f *FS) Put(key, value string) error {
	p, err := f.Path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".notekeep-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(value); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the file for key.
func (f *FS) Delete(key string) error {
	p, err := f.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Clear removes every key file under the root. Unrelated files are left alone.
func (f *FS) Clear() error {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return fmt.Errorf("storage: list: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := f.KeyOf(filepath.Join(f.root, e.Name()))
		if !ok {
			continue
		}
		if err := f.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op for the file store.
func (f *FS) Close() error { return nil }

// Checksum returns the SHA-256 of the stored value, or "" when key is absent.
func (f *FS) Checksum(key string) (string, error) {
	v, err := f.Get(key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return Checksum(v), nil
}

// Checksum returns the hex-encoded SHA-256 digest of value.
func Checksum(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}
