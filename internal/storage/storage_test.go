package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/animerec/internal/config"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.CacheConfig
		backend string
		wantErr bool
	}{
		{"json", config.CacheConfig{Backend: "json", Path: filepath.Join(dir, "c.json")}, "json", false},
		{"default is json", config.CacheConfig{Path: filepath.Join(dir, "d.json")}, "json", false},
		{"sqlite", config.CacheConfig{Backend: "sqlite", Path: filepath.Join(dir, "c.db")}, "sqlite", false},
		{"unknown", config.CacheConfig{Backend: "redis"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer store.Close()
			if store.Backend() != tt.backend {
				t.Errorf("Backend() = %s, want %s", store.Backend(), tt.backend)
			}
			if store.Path() != tt.cfg.Path {
				t.Errorf("Path() = %s, want %s", store.Path(), tt.cfg.Path)
			}
		})
	}
}

func TestIsFresh(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !isFresh(base, base.Add(24*time.Hour), 24*time.Hour) {
		t.Error("age == maxAge should be fresh")
	}
	if isFresh(base, base.Add(24*time.Hour+1), 24*time.Hour) {
		t.Error("age > maxAge should be stale")
	}
	if !isFresh(base, base.Add(-time.Hour), 24*time.Hour) {
		t.Error("a timestamp in the future counts as fresh")
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anime_cache.json")

	got, err := DiskUsageBytes(path)
	if err != nil || got != 0 {
		t.Fatalf("missing snapshot: got %d, %v", got, err)
	}
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".lock", nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+"-wal", []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DiskUsageBytes(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("got %d bytes, want 8", got)
	}
	if n, _ := DiskUsageBytes(":memory:"); n != 0 {
		t.Errorf("in-memory database should report 0, got %d", n)
	}
}
