package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/animerec/internal/catalog"
	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/internal/fingerprint"
	"github.com/hyperjump/animerec/internal/index"
	"github.com/hyperjump/animerec/internal/keyword"
	"github.com/hyperjump/animerec/internal/metrics"
	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/storage"
	"github.com/hyperjump/animerec/internal/vector"
	"github.com/hyperjump/animerec/pkg/utils"
)

// ErrInvalidQuery wraps query validation failures.
var ErrInvalidQuery = errors.New("invalid query")

// Snapshot is one immutable catalog with everything derived from it.
type Snapshot struct {
	Records     models.CatalogSet
	Matrix      *vector.Matrix
	Recommender *Recommender
	Resolver    *keyword.TitleResolver
	Search      *keyword.CatalogIndex
	Fingerprint string
	Fetch       *catalog.FetchResult
	BuiltAt     time.Time
}

// Engine ties the fetcher, the index builder and the recommender together and
// holds the current snapshot. Loads are shared between concurrent callers.
type Engine struct {
	fetcher *catalog.Fetcher
	builder *index.Builder
	store   storage.CacheStore
	cfg     config.RecommendConfig
	logger  *zap.Logger

	mu      sync.RWMutex
	current *Snapshot
	gen     uint64
	loads   singleflight.Group
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// NewEngine creates an engine. No catalog is loaded until the first request.
func NewEngine(fetcher *catalog.Fetcher, builder *index.Builder, store storage.CacheStore, cfg config.RecommendConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher: fetcher,
		builder: builder,
		store:   store,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// loadTimeout bounds a shared load once it no longer belongs to any one caller.
const loadTimeout = 10 * time.Minute

// Snapshot returns the current snapshot, loading it from the cache or the API
// when there is none. Concurrent callers share one load; a caller whose ctx ends
// returns early without cancelling the load for the others.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	e.mu.RLock()
	snap, gen := e.current, e.gen
	e.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return e.shared(ctx, fmt.Sprintf("load-%d", gen), func(ctx context.Context) (*Snapshot, error) {
		res, err := e.fetcher.GetCatalog(ctx, 0)
		if err != nil {
			return nil, err
		}
		return e.publish(ctx, res, gen)
	})
}

// Refresh refetches the catalog from the API regardless of cache freshness and
// replaces the snapshot.
func (e *Engine) Refresh(ctx context.Context) (*Snapshot, error) {
	return e.shared(ctx, "refresh", func(ctx context.Context) (*Snapshot, error) {
		res, err := e.fetcher.Refresh(ctx, 0)
		if err != nil {
			return nil, err
		}
		e.mu.RLock()
		gen := e.gen
		e.mu.RUnlock()
		return e.publish(ctx, res, gen)
	})
}

// shared runs load once per key under a context detached from the caller's
// cancellation, and waits for it or for ctx, whichever ends first.
func (e *Engine) shared(ctx context.Context, key string, load func(context.Context) (*Snapshot, error)) (*Snapshot, error) {
	ch := e.loads.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return load(loadCtx)
	})
	select {
	case <-ctx.Done():
		e.logger.Debug("Caller left a shared catalog load", zap.String("key", key), zap.Error(ctx.Err()))
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Snapshot), nil
	}
}

// Invalidate drops the current snapshot; the next request reloads it. It is
// safe to call from any goroutine.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.current = nil
	e.gen++
	e.mu.Unlock()
	e.logger.Debug("Catalog snapshot invalidated")
}

// InvalidateIfChanged drops the current snapshot unless the cache still holds
// the catalog it was built from, and reports whether it did. Saves made by the
// engine's own fetches therefore keep the snapshot they produced.
func (e *Engine) InvalidateIfChanged(ctx context.Context) bool {
	e.mu.RLock()
	snap := e.current
	e.mu.RUnlock()
	if snap != nil {
		records, ok := e.store.Load(ctx)
		if ok && fingerprint.Compute(records) == snap.Fingerprint {
			e.logger.Debug("Cache matches the current snapshot, keeping it", zap.String("fingerprint", snap.Fingerprint))
			return false
		}
	}
	e.Invalidate()
	return true
}

func (e *Engine) publish(ctx context.Context, res *catalog.FetchResult, gen uint64) (*Snapshot, error) {
	snap, err := e.buildSnapshot(ctx, res)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	// An Invalidate during the build leaves the snapshot unpublished; callers
	// still get it, and the next request reloads.
	if e.gen == gen {
		e.current = snap
	}
	e.mu.Unlock()
	metrics.CatalogRecords.Set(float64(len(snap.Records)))
	return snap, nil
}

func (e *Engine) buildSnapshot(ctx context.Context, res *catalog.FetchResult) (*Snapshot, error) {
	records := res.Records
	matrix, err := e.builder.Build(ctx, records)
	if err != nil {
		return nil, err
	}
	rec, err := NewRecommender(records, matrix)
	if err != nil {
		return nil, err
	}
	search, err := keyword.NewCatalogIndex(records)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Records:     records,
		Matrix:      matrix,
		Recommender: rec,
		Resolver:    keyword.NewTitleResolver(records),
		Search:      search,
		Fingerprint: fingerprint.Compute(records),
		Fetch:       res,
		BuiltAt:     time.Now(),
	}
	e.logger.Info("Catalog snapshot ready",
		zap.Int("records", len(records)),
		zap.String("fingerprint", snap.Fingerprint),
		zap.Bool("from_cache", res.FromCache),
	)
	return snap, nil
}

// Recommend resolves q.Title and returns its nearest neighbours.
func (e *Engine) Recommend(ctx context.Context, q *models.RecommendQuery) (*models.RecommendResponse, error) {
	start := time.Now()
	if err := q.Validate(e.cfg.DefaultTopN, e.cfg.MaxLimit); err != nil {
		metrics.RecommendTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	snap, err := e.Snapshot(ctx)
	if err != nil {
		metrics.RecommendTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	idx, err := snap.Recommender.Resolve(q.Title)
	if err != nil {
		metrics.RecommendTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	metrics.RecommendTotal.WithLabelValues("ok").Inc()
	return &models.RecommendResponse{
		Title:           q.Title,
		Resolved:        snap.Recommender.Record(idx).Title,
		Recommendations: snap.Recommender.Neighbours(idx, q.Limit),
		QueryTime:       time.Since(start).Milliseconds(),
	}, nil
}

// Suggest returns fuzzy title suggestions for q.Query.
func (e *Engine) Suggest(ctx context.Context, q *models.SuggestQuery) (*models.SuggestResponse, error) {
	if err := q.Validate(e.cfg.SuggestLimit, e.cfg.MaxLimit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SuggestTotal.Inc()
	return &models.SuggestResponse{
		Query:       q.Query,
		Suggestions: snap.Resolver.Suggest(q.Query, q.Limit),
	}, nil
}

// Search runs a full-text query over titles, synopses and genres.
func (e *Engine) Search(ctx context.Context, q *models.SuggestQuery, fuzzy bool) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(10, e.cfg.MaxLimit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	hits, err := snap.Search.Search(ctx, q.Query, q.Limit, fuzzy)
	if err != nil {
		return nil, err
	}
	resp := &models.SearchResponse{Query: q.Query, Hits: make([]*models.SearchHit, 0, len(hits)), Fuzzy: fuzzy}
	for i, h := range hits {
		resp.Hits = append(resp.Hits, &models.SearchHit{Rank: i + 1, Score: h.Score, Record: snap.Records[h.Index]})
	}
	resp.Total = len(resp.Hits)
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

// Status describes the loaded catalog and its cache, loading the catalog if needed.
func (e *Engine) Status(ctx context.Context) (*models.CatalogStatus, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	status := &models.CatalogStatus{
		Records:      len(snap.Records),
		LastUpdated:  storage.LastUpdated(ctx, e.store),
		Fresh:        e.store.IsFresh(ctx),
		CacheBackend: e.store.Backend(),
		CachePath:    e.store.Path(),
		Fingerprint:  snap.Fingerprint,
		Embedder:     e.builder.EmbedderName(),
		MatrixDim:    snap.Matrix.Dim(),
		SessionID:    snap.Fetch.SessionID,
		FromCache:    snap.Fetch.FromCache,
		PageWarnings: len(snap.Fetch.Warnings),
	}
	if n, err := storage.DiskUsageBytes(e.store.Path()); err == nil {
		status.DiskUsageBytes = &n
	}
	return status, nil
}

// RefreshSummary refreshes the catalog and summarises the fetch.
func (e *Engine) RefreshSummary(ctx context.Context) (*models.RefreshResponse, error) {
	start := time.Now()
	snap, err := e.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return &models.RefreshResponse{
		SessionID:    snap.Fetch.SessionID,
		Records:      len(snap.Records),
		PageWarnings: snap.Fetch.WarningStrings(),
		Fingerprint:  snap.Fingerprint,
		Duration:     time.Since(start).Milliseconds(),
	}, nil
}
