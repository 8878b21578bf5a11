package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a document does not exist in its
	// collection, or exists but cannot be read back as valid JSON.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned by Create when a document with the
	// same key is already present in the collection.
	ErrAlreadyExists = errors.New("document already exists")
)

// Keys become filenames, so only filename-safe characters are accepted.
var validKey = regexp.MustCompile(`^[A-Za-z0-9+_-]{1,128}$`)

// ValidKey reports whether s is usable as a document key. Handlers can
// check user-supplied identifiers before they reach the filesystem.
func ValidKey(s string) bool {
	return validKey.MatchString(s)
}

// FileStore persists JSON documents as individual files, one directory
// per collection, one "<key>.json" file per document.
//
// Writes go through a uniquely named temp file followed by a rename, so
// a reader never observes a partially written document. A per-document
// mutex serializes concurrent writes to the same (collection, key);
// writes to distinct keys are last-writer-wins by design.
type FileStore struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates the base directory if needed and returns a store
// rooted at it.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", baseDir, err)
	}
	return &FileStore{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Create writes a new document. It fails with ErrAlreadyExists if a
// document with the same key is present.
func (s *FileStore) Create(ctx context.Context, collection, key string, v any) error {
	if err := checkArgs(ctx, collection, key); err != nil {
		return err
	}
	lock := s.lockFor(collection, key)
	lock.Lock()
	defer lock.Unlock()

	path := s.docPath(collection, key)
	if _, err := os.Stat(path); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat document %s/%s: %w", collection, key, err)
	}
	return s.writeDoc(collection, path, v)
}

// Read loads the document for key into v. An absent, unreadable or
// corrupt document reports ErrNotFound.
func (s *FileStore) Read(ctx context.Context, collection, key string, v any) error {
	if err := checkArgs(ctx, collection, key); err != nil {
		return err
	}
	data, err := os.ReadFile(s.docPath(collection, key))
	if err != nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrNotFound
	}
	return nil
}

// Update fully replaces an existing document. It fails with ErrNotFound
// if the document does not exist.
func (s *FileStore) Update(ctx context.Context, collection, key string, v any) error {
	if err := checkArgs(ctx, collection, key); err != nil {
		return err
	}
	lock := s.lockFor(collection, key)
	lock.Lock()
	defer lock.Unlock()

	path := s.docPath(collection, key)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to stat document %s/%s: %w", collection, key, err)
	}
	return s.writeDoc(collection, path, v)
}

// Delete removes a document. It fails with ErrNotFound if absent.
func (s *FileStore) Delete(ctx context.Context, collection, key string) error {
	if err := checkArgs(ctx, collection, key); err != nil {
		return err
	}
	lock := s.lockFor(collection, key)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.docPath(collection, key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, key, err)
	}
	return nil
}

// List returns the keys of every document in a collection. A collection
// that has never been written to is empty, not an error.
func (s *FileStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validKey.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	entries, err := os.ReadDir(filepath.Join(s.baseDir, collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

func (s *FileStore) docPath(collection, key string) string {
	return filepath.Join(s.baseDir, collection, key+".json")
}

// lockFor returns the mutex guarding a single (collection, key) pair,
// creating it on first use.
func (s *FileStore) lockFor(collection, key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := collection + "/" + key
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// writeDoc serializes v into a temp file in the collection directory and
// renames it over the final path. Rename is atomic on POSIX filesystems,
// so a failed write never leaves a partial document behind.
func (s *FileStore) writeDoc(collection, path string, v any) error {
	dir := filepath.Join(s.baseDir, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create collection directory %s: %w", collection, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize document write: %w", err)
	}
	return nil
}

func checkArgs(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validKey.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid document key %q", key)
	}
	return nil
}
