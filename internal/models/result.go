package models

// Recommendation is one neighbour of the queried title.
type Recommendation struct {
	Rank   int           `json:"rank"`
	Score  float64       `json:"score"`
	Record CatalogRecord `json:"record"`
}

// RecommendResponse is the response for a recommendation request.
type RecommendResponse struct {
	Title           string            `json:"title"`
	Resolved        string            `json:"resolved"`
	Recommendations []*Recommendation `json:"recommendations"`
	QueryTime       int64             `json:"query_time_ms"`
}

// TitleMatch is a fuzzy title suggestion with its 0-100 score.
type TitleMatch struct {
	Title string `json:"title"`
	Score int    `json:"score"`
}

// SuggestResponse is the response for a title suggestion request.
type SuggestResponse struct {
	Query       string       `json:"query"`
	Suggestions []TitleMatch `json:"suggestions"`
}

// SearchHit is a full-text search hit over the catalog.
type SearchHit struct {
	Rank   int           `json:"rank"`
	Score  float64       `json:"score"`
	Record CatalogRecord `json:"record"`
}

// SearchResponse is the response for a catalog text search.
type SearchResponse struct {
	Query     string       `json:"query"`
	Hits      []*SearchHit `json:"hits"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	Fuzzy     bool         `json:"fuzzy,omitempty"`
}

// CatalogStatus describes the loaded catalog and its cache.
type CatalogStatus struct {
	Records        int    `json:"records"`
	LastUpdated    string `json:"last_updated"`
	Fresh          bool   `json:"fresh"`
	CacheBackend   string `json:"cache_backend"`
	CachePath      string `json:"cache_path,omitempty"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
	Fingerprint    string `json:"fingerprint,omitempty"`
	Embedder       string `json:"embedder,omitempty"`
	MatrixDim      int    `json:"matrix_dim"`
	SessionID      string `json:"session_id,omitempty"`
	FromCache      bool   `json:"from_cache"`
	PageWarnings   int    `json:"page_warnings"`
}

// RefreshResponse summarises a forced catalog refresh.
type RefreshResponse struct {
	SessionID    string   `json:"session_id"`
	Records      int      `json:"records"`
	PageWarnings []string `json:"page_warnings,omitempty"`
	Fingerprint  string   `json:"fingerprint"`
	Duration     int64    `json:"duration_ms"`
}
