// Package catalog fetches the top-anime listing from the Jikan API and keeps the
// local cache snapshot current.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/internal/metrics"
	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/storage"
	"github.com/hyperjump/animerec/pkg/utils"
)

// PageWarning records a page that contributed no records.
type PageWarning struct {
	Page       int
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (w PageWarning) String() string {
	if w.StatusCode != 0 && w.StatusCode != http.StatusOK {
		return fmt.Sprintf("page %d: status code %d", w.Page, w.StatusCode)
	}
	return fmt.Sprintf("page %d: %v", w.Page, w.Err)
}

// FetchResult is the catalog returned by GetCatalog or Refresh.
type FetchResult struct {
	Records   models.CatalogSet
	Warnings  []PageWarning
	FromCache bool
	SessionID string // empty when served from cache
	FetchedAt time.Time
}

// WarningStrings renders the page warnings for display.
func (r *FetchResult) WarningStrings() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.String()
	}
	return out
}

// Fetcher serves the catalog from the cache when fresh and from the remote API otherwise.
type Fetcher struct {
	store     storage.CacheStore
	client    *http.Client
	endpoint  string
	pages     int
	delay     time.Duration
	userAgent string
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger sets the logger for page warnings and cache decisions.
func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = utils.OrNop(l) }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithEndpoint overrides the listing URL.
func WithEndpoint(endpoint string) FetcherOption {
	return func(f *Fetcher) { f.endpoint = endpoint }
}

// WithDelay sets the pause after each successful page.
func WithDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.delay = d }
}

// WithSleep replaces the context-aware sleep used between pages.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithClock replaces time.Now for FetchedAt and session timing.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFetcher creates a fetcher over store using the endpoint, page count, delay,
// timeout and user agent from cfg.
func NewFetcher(store storage.CacheStore, cfg config.CatalogConfig, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		store:     store,
		client:    &http.Client{Timeout: cfg.Timeout},
		endpoint:  cfg.Endpoint,
		pages:     cfg.Pages,
		delay:     cfg.RequestDelay,
		userAgent: cfg.UserAgent,
		logger:    zap.NewNop(),
		sleep:     sleepContext,
		now:       time.Now,
	}
	if f.endpoint == "" {
		f.endpoint = config.DefaultEndpoint
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetCatalog returns the cached catalog when it is fresh and readable; otherwise it
// fetches pages 1..pages from the API and persists the result. pages <= 0 uses the
// configured page count.
func (f *Fetcher) GetCatalog(ctx context.Context, pages int) (*FetchResult, error) {
	if f.store.IsFresh(ctx) {
		if records, ok := f.store.Load(ctx); ok {
			metrics.RecordCacheLookup("hit")
			fetchedAt, _ := f.store.LastModified(ctx)
			f.logger.Info("Loaded catalog from cache",
				zap.String("path", f.store.Path()),
				zap.Int("records", len(records)),
			)
			return &FetchResult{Records: records, FromCache: true, FetchedAt: fetchedAt}, nil
		}
		metrics.RecordCacheLookup("unreadable")
		f.logger.Warn("Cache is fresh but unreadable, refetching", zap.String("path", f.store.Path()))
	} else if _, exists := f.store.LastModified(ctx); exists {
		metrics.RecordCacheLookup("stale")
		f.logger.Info("Cache is stale, refreshing", zap.String("path", f.store.Path()))
	} else {
		metrics.RecordCacheLookup("miss")
		f.logger.Info("No cached catalog, fetching", zap.String("path", f.store.Path()))
	}
	return f.fetch(ctx, pages)
}

// Refresh fetches from the API regardless of cache freshness and persists the result.
func (f *Fetcher) Refresh(ctx context.Context, pages int) (*FetchResult, error) {
	return f.fetch(ctx, pages)
}

func (f *Fetcher) fetch(ctx context.Context, pages int) (*FetchResult, error) {
	if pages <= 0 {
		pages = f.pages
	}
	if pages <= 0 {
		pages = 1
	}
	sessionID := uuid.New().String()
	log := f.logger.With(zap.String("session_id", sessionID))
	start := f.now()
	log.Info("Fetching catalog from remote API",
		zap.String("endpoint", f.endpoint),
		zap.Int("pages", pages),
	)

	result := &FetchResult{Records: models.CatalogSet{}, SessionID: sessionID}
	seen := make(map[int]struct{})
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, status, err := f.fetchPage(ctx, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.RecordFetchPage(false)
			w := PageWarning{Page: page, StatusCode: status, Err: err}
			result.Warnings = append(result.Warnings, w)
			log.Warn("Failed to fetch page",
				zap.Int("page", page),
				zap.Int("status_code", status),
				zap.Error(err),
			)
			continue
		}
		metrics.RecordFetchPage(true)
		for _, item := range items {
			if item.Title == "" {
				log.Warn("Skipping item without title", zap.Int("page", page), zap.Int("mal_id", item.MalID))
				continue
			}
			if _, dup := seen[item.MalID]; dup {
				log.Debug("Skipping duplicate item", zap.Int("page", page), zap.Int("mal_id", item.MalID))
				continue
			}
			seen[item.MalID] = struct{}{}
			result.Records = append(result.Records, item.toRecord())
		}
		log.Debug("Fetched page", zap.Int("page", page), zap.Int("items", len(items)))
		if err := f.sleep(ctx, f.delay); err != nil {
			return nil, err
		}
	}

	if err := f.store.Save(ctx, result.Records); err != nil {
		metrics.CacheSaveErrors.Inc()
		return nil, fmt.Errorf("failed to save catalog cache: %w", err)
	}
	result.FetchedAt = f.now()
	elapsed := result.FetchedAt.Sub(start)
	metrics.RecordFetchSession(elapsed, len(result.Records))
	log.Info("Saved catalog to cache",
		zap.String("path", f.store.Path()),
		zap.Int("records", len(result.Records)),
		zap.Int("failed_pages", len(result.Warnings)),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

// errStatus reports a non-200 response.
var errStatus = errors.New("unexpected status")

// fetchPage requests one page. The returned status is 0 when no response arrived.
func (f *Fetcher) fetchPage(ctx context.Context, page int) ([]jikanAnime, int, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("%w: %s", errStatus, resp.Status)
	}
	var body topAnimePage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode page: %w", err)
	}
	return body.Data, resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
