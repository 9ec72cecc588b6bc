package config

import "time"

// Cache backends.
const (
	CacheBackendJSON   = "json"
	CacheBackendSQLite = "sqlite"
)

// Embedding strategies.
const (
	StrategyTFIDF = "tfidf"
	StrategyONNX  = "onnx"
)

// DefaultEndpoint is the Jikan top-anime listing.
const DefaultEndpoint = "https://api.jikan.moe/v4/top/anime"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RefreshRequestsPerMinute == 0 {
		cfg.Server.RefreshRequestsPerMinute = 2
	}
	if cfg.Catalog.Endpoint == "" {
		cfg.Catalog.Endpoint = DefaultEndpoint
	}
	if cfg.Catalog.Pages == 0 {
		cfg.Catalog.Pages = 20
	}
	if cfg.Catalog.RequestDelay == 0 {
		cfg.Catalog.RequestDelay = 500 * time.Millisecond
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 30 * time.Second
	}
	if cfg.Catalog.UserAgent == "" {
		cfg.Catalog.UserAgent = "animerec/dev"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheBackendJSON
	}
	if cfg.Cache.Path == "" {
		if cfg.Cache.Backend == CacheBackendSQLite {
			cfg.Cache.Path = "/usr/local/var/animerec/data/anime_cache.db"
		} else {
			cfg.Cache.Path = "/usr/local/var/animerec/data/anime_cache.json"
		}
	}
	if cfg.Cache.MaxAge == 0 {
		cfg.Cache.MaxAge = 24 * time.Hour
	}
	if cfg.Cache.Watch == nil {
		t := true
		cfg.Cache.Watch = &t
	}
	if cfg.Embedding.Strategy == "" {
		cfg.Embedding.Strategy = StrategyTFIDF
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/animerec/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Index.CacheSize == 0 {
		cfg.Index.CacheSize = 4
	}
	if cfg.Recommend.DefaultTopN == 0 {
		cfg.Recommend.DefaultTopN = 5
	}
	if cfg.Recommend.SuggestLimit == 0 {
		cfg.Recommend.SuggestLimit = 5
	}
	if cfg.Recommend.MaxLimit == 0 {
		cfg.Recommend.MaxLimit = 50
	}
}
