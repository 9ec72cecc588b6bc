package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/internal/models"
)

// JSONFileStore keeps the snapshot as one indented UTF-8 JSON array. The file's
// modification time is the only freshness signal.
type JSONFileStore struct {
	path string
	lock *flock.Flock
	opts storeOptions
}

// NewJSONFileStore returns a store backed by the file at path. The file and its
// parent directory are created on first Save.
func NewJSONFileStore(path string, opts ...StoreOption) *JSONFileStore {
	return &JSONFileStore{
		path: path,
		lock: flock.New(path + ".lock"),
		opts: newStoreOptions(opts),
	}
}

// IsFresh reports whether the file exists and its age does not exceed the max age.
func (s *JSONFileStore) IsFresh(ctx context.Context) bool {
	modified, ok := s.LastModified(ctx)
	if !ok {
		return false
	}
	return isFresh(modified, s.opts.now(), s.opts.maxAge)
}

// LastModified returns the file's modification time.
func (s *JSONFileStore) LastModified(_ context.Context) (time.Time, bool) {
	info, err := os.Stat(s.path)
	if err != nil || info.IsDir() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Load decodes the file. A missing file, a lock failure, or content that is not a
// JSON array of records all yield (nil, false).
func (s *JSONFileStore) Load(_ context.Context) (models.CatalogSet, bool) {
	if err := s.lock.RLock(); err != nil {
		return nil, false
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}
	var records models.CatalogSet
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}
	if records == nil {
		return nil, false
	}
	return records, true
}

// Save writes records to a temporary file beside the target and renames it into
// place while holding the lock, so readers never observe a half-written snapshot.
func (s *JSONFileStore) Save(_ context.Context, records models.CatalogSet) error {
	if records == nil {
		records = models.CatalogSet{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock cache file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, ".animerec-cache-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod cache file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace cache file: %w", err)
	}
	now := s.opts.now()
	if err := os.Chtimes(s.path, now, now); err != nil {
		return fmt.Errorf("touch cache file: %w", err)
	}
	return nil
}

// Path returns the cache file path.
func (s *JSONFileStore) Path() string { return s.path }

// Backend returns "json".
func (s *JSONFileStore) Backend() string { return config.CacheBackendJSON }

// Close releases the lock file handle.
func (s *JSONFileStore) Close() error {
	return s.lock.Close()
}
