package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hyperjump/animerec/internal/models"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache", "anime.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, ok := store.Load(ctx); ok {
		t.Fatal("Load before any Save should report false")
	}
	if store.IsFresh(ctx) {
		t.Fatal("empty database should not be fresh")
	}
	records := sampleRecords()
	if err := store.Save(ctx, records); err != nil {
		t.Fatal(err)
	}
	got, ok := store.Load(ctx)
	if !ok {
		t.Fatal("Load after Save should succeed")
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, records)
	}
	if !store.IsFresh(ctx) {
		t.Error("just-saved snapshot should be fresh")
	}
}

func TestSQLiteStore_SaveReplacesAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Save(ctx, sampleRecords()); err != nil {
		t.Fatal(err)
	}
	// Ids deliberately out of order: position, not id, defines order.
	replacement := models.CatalogSet{
		{ID: 300, Title: "C"},
		{ID: 100, Title: "A"},
		{ID: 200, Title: "B"},
	}
	if err := store.Save(ctx, replacement); err != nil {
		t.Fatal(err)
	}
	got, ok := store.Load(ctx)
	if !ok || !reflect.DeepEqual(got, replacement) {
		t.Errorf("Load() = %+v, %v; want %+v", got, ok, replacement)
	}
}

func TestSQLiteStore_FreshnessBoundary(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, err := NewSQLiteStore(":memory:", WithClock(clock.now))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Save(ctx, sampleRecords()); err != nil {
		t.Fatal(err)
	}
	saved := clock.t

	clock.t = saved.Add(24 * time.Hour)
	if !store.IsFresh(ctx) {
		t.Error("exactly 24h old should still be fresh")
	}
	clock.t = saved.Add(24*time.Hour + time.Nanosecond)
	if store.IsFresh(ctx) {
		t.Error("older than 24h should be stale")
	}
	modified, ok := store.LastModified(ctx)
	if !ok || !modified.Equal(saved) {
		t.Errorf("LastModified() = %v, %v; want %v", modified, ok, saved)
	}
}

func TestSQLiteStore_EmptySet(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Save(ctx, models.CatalogSet{}); err != nil {
		t.Fatal(err)
	}
	got, ok := store.Load(ctx)
	if !ok || len(got) != 0 {
		t.Errorf("Load() = %v, %v; want empty, true", got, ok)
	}
}
