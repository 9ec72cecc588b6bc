// Package config provides configuration loading and structs for the animerec tool and server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RefreshRequestsPerMinute limits POST /api/v1/catalog/refresh per client IP.
	RefreshRequestsPerMinute int `yaml:"refresh_requests_per_minute"`
}

// CatalogConfig holds remote catalog API settings.
type CatalogConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Pages        int           `yaml:"pages"`
	RequestDelay time.Duration `yaml:"request_delay"`
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
}

// CacheConfig holds the local catalog snapshot settings.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // "json" or "sqlite"
	Path    string        `yaml:"path"`
	MaxAge  time.Duration `yaml:"max_age"`
	Watch   *bool         `yaml:"watch"`
}

// WatchOrDefault returns whether the server watches the cache file; defaults to true when unset.
func (c *CacheConfig) WatchOrDefault() bool {
	if c.Watch != nil {
		return *c.Watch
	}
	return true
}

// EmbeddingConfig selects and configures the text vectorizer.
type EmbeddingConfig struct {
	Strategy   string `yaml:"strategy"` // "tfidf" or "onnx"
	ModelPath  string `yaml:"model_path"`
	VocabPath  string `yaml:"vocab_path"` // defaults to vocab.txt next to the model
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// VocabFile returns the WordPiece vocabulary used with the ONNX model.
func (c EmbeddingConfig) VocabFile() string {
	if c.VocabPath != "" {
		return c.VocabPath
	}
	return filepath.Join(filepath.Dir(c.ModelPath), "vocab.txt")
}

// IndexConfig holds similarity index memoization settings.
type IndexConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// RecommendConfig holds recommendation and suggestion limits.
type RecommendConfig struct {
	DefaultTopN  int `yaml:"default_top_n"`
	SuggestLimit int `yaml:"suggest_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Cache.Path = expandPath(cfg.Cache.Path, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Embedding.VocabPath != "" {
		cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	}

	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendJSON, CacheBackendSQLite:
	default:
		return fmt.Errorf("invalid cache backend %q (supported: json, sqlite)", c.Cache.Backend)
	}
	switch c.Embedding.Strategy {
	case StrategyTFIDF, StrategyONNX:
	default:
		return fmt.Errorf("invalid embedding strategy %q (supported: tfidf, onnx)", c.Embedding.Strategy)
	}
	if c.Catalog.Pages < 1 {
		return fmt.Errorf("catalog pages must be positive, got %d", c.Catalog.Pages)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
