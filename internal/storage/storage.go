// Package storage defines the persistence interface for the local catalog snapshot.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/internal/models"
)

// DefaultMaxAge is the freshness window of a cached catalog.
const DefaultMaxAge = 24 * time.Hour

// LastUpdatedLayout is the layout of the human-readable "last updated" string.
const LastUpdatedLayout = "2006-01-02 15:04:05"

// UnknownLastUpdated is reported when no snapshot has been persisted.
const UnknownLastUpdated = "Unknown"

// CacheStore persists one catalog snapshot and reports its freshness.
type CacheStore interface {
	// IsFresh reports whether a snapshot exists and is no older than the max age.
	// Content is not validated.
	IsFresh(ctx context.Context) bool
	// Load returns the persisted records, or false if absent or unreadable.
	Load(ctx context.Context) (models.CatalogSet, bool)
	// Save replaces the snapshot with records.
	Save(ctx context.Context, records models.CatalogSet) error
	// LastModified returns when the snapshot was last written.
	LastModified(ctx context.Context) (time.Time, bool)
	// Path is where the snapshot lives.
	Path() string
	// Backend names the implementation ("json" or "sqlite").
	Backend() string
	Close() error
}

// StoreOption configures a CacheStore.
type StoreOption func(*storeOptions)

type storeOptions struct {
	maxAge time.Duration
	now    func() time.Time
}

// WithMaxAge sets the freshness window. Non-positive values are ignored.
func WithMaxAge(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		if d > 0 {
			o.maxAge = d
		}
	}
}

// WithClock replaces time.Now for freshness checks and timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{maxAge: DefaultMaxAge, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// isFresh treats an age equal to maxAge as still fresh; only strictly older snapshots are stale.
func isFresh(modified, now time.Time, maxAge time.Duration) bool {
	return now.Sub(modified) <= maxAge
}

// New opens the cache backend selected by cfg.
func New(cfg config.CacheConfig, opts ...StoreOption) (CacheStore, error) {
	opts = append([]StoreOption{WithMaxAge(cfg.MaxAge)}, opts...)
	switch cfg.Backend {
	case config.CacheBackendJSON, "":
		return NewJSONFileStore(cfg.Path, opts...), nil
	case config.CacheBackendSQLite:
		return NewSQLiteStore(cfg.Path, opts...)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: json, sqlite)", cfg.Backend)
	}
}

// LastUpdated formats the snapshot's modification time in local time, or
// returns UnknownLastUpdated when nothing has been persisted.
func LastUpdated(ctx context.Context, store CacheStore) string {
	t, ok := store.LastModified(ctx)
	if !ok {
		return UnknownLastUpdated
	}
	return t.Local().Format(LastUpdatedLayout)
}
