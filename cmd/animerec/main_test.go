package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/storage"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after title are moved first",
			args:     []string{"cowboy bebop", "-limit", "3"},
			expected: []string{"-limit", "3", "cowboy bebop"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "3", "cowboy bebop"},
			expected: []string{"-limit", "3", "cowboy bebop"},
		},
		{
			name:     "title only returns unchanged",
			args:     []string{"naruto"},
			expected: []string{"naruto"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "piece", "-output", "json"},
			expected: []string{"-output", "json", "one", "piece"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"naruto"}, "naruto"},
		{"multiple words", []string{"cowboy", "bebop"}, "cowboy bebop"},
		{"single quoted phrase", []string{"cowboy bebop"}, "cowboy bebop"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
cache:
  backend: sqlite
  path: "./cache.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Cache.Backend != config.CacheBackendSQLite {
		t.Errorf("cwd config not applied: %+v", cfg)
	}
}

func TestLoadConfig_missingDefaultUsesBuiltins(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	chdir(t, t.TempDir())

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Recommend.DefaultTopN != 5 || cfg.Cache.Backend != config.CacheBackendJSON {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

func TestInitializeComponents_RecommendFromCache(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Cache.Path = filepath.Join(t.TempDir(), "anime_cache.json")
	cfg.Catalog.Endpoint = "http://127.0.0.1:1/unreachable"

	seed := storage.NewJSONFileStore(cfg.Cache.Path)
	records := models.CatalogSet{
		{ID: 1, Title: "Cowboy Bebop", Synopsis: "Bounty hunters travel through space.", Genres: "Action, Sci-Fi"},
		{ID: 2, Title: "Space Dandy", Synopsis: "An alien hunter travels through space.", Genres: "Comedy, Sci-Fi"},
		{ID: 3, Title: "K-On!", Synopsis: "Girls form a light music club.", Genres: "Music, Slice of Life"},
	}
	if err := seed.Save(context.Background(), records); err != nil {
		t.Fatal(err)
	}

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	resp, err := components.Engine.Recommend(context.Background(), &models.RecommendQuery{Title: "cowboy bebop", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].Record.Title != "Space Dandy" {
		t.Errorf("recommendations = %+v", resp.Recommendations)
	}
	if components.Builder.EmbedderName() != "tfidf" {
		t.Errorf("embedder = %q, want tfidf", components.Builder.EmbedderName())
	}
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("title") {
		case "naruto":
			_, _ = w.Write([]byte(`{"title":"naruto","resolved":"Naruto","recommendations":[]}`))
		case "boom":
			http.Error(w, "internal", http.StatusInternalServerError)
		default:
			http.Error(w, `{"error":"title not found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var resp models.RecommendResponse
	if err := getJSON(srv.URL+"/", "/api/v1/recommend", url.Values{"title": {"naruto"}}, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Resolved != "Naruto" {
		t.Errorf("resolved = %q", resp.Resolved)
	}
	if err := getJSON(srv.URL, "/api/v1/recommend", url.Values{"title": {"x"}}, &resp); !errors.Is(err, errNotFound) {
		t.Errorf("err = %v, want errNotFound", err)
	}
	if err := getJSON(srv.URL, "/api/v1/recommend", url.Values{"title": {"boom"}}, &resp); err == nil || errors.Is(err, errNotFound) {
		t.Errorf("err = %v, want server error", err)
	}
}
