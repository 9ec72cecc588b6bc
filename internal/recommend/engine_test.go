package recommend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/hyperjump/animerec/internal/catalog"
	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/internal/embedding"
	"github.com/hyperjump/animerec/internal/index"
	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/storage"
)

type engineFixture struct {
	engine   *Engine
	store    *storage.JSONFileStore
	builder  *index.Builder
	requests *int32
}

// newEngineFixture seeds a fresh JSON cache with cached and serves live from a
// fake listing endpoint.
func newEngineFixture(t *testing.T, cached, live models.CatalogSet) *engineFixture {
	t.Helper()
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		items := make([]map[string]any, 0, len(live))
		for _, rec := range live {
			items = append(items, map[string]any{
				"mal_id":   rec.ID,
				"title":    rec.Title,
				"synopsis": rec.Synopsis,
				"genres":   []map[string]string{{"name": rec.Genres}},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": items})
	}))
	t.Cleanup(srv.Close)

	store := storage.NewJSONFileStore(filepath.Join(t.TempDir(), "anime_cache.json"))
	t.Cleanup(func() { _ = store.Close() })
	if cached != nil {
		if err := store.Save(context.Background(), cached); err != nil {
			t.Fatal(err)
		}
	}
	fetcher := catalog.NewFetcher(store, config.CatalogConfig{Endpoint: srv.URL, Pages: 1, Timeout: 5 * time.Second})
	builder := index.NewBuilder(embedding.NewTFIDFEmbedder())
	cfg := config.RecommendConfig{DefaultTopN: 5, SuggestLimit: 5, MaxLimit: 50}
	return &engineFixture{
		engine:   NewEngine(fetcher, builder, store, cfg),
		store:    store,
		builder:  builder,
		requests: &requests,
	}
}

func TestEngine_RecommendFromCache(t *testing.T) {
	f := newEngineFixture(t, shonenCatalog(), nil)
	resp, err := f.engine.Recommend(context.Background(), &models.RecommendQuery{Title: "naruto", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Resolved != "Naruto" || len(resp.Recommendations) != 1 || resp.Recommendations[0].Record.Title != "Bleach" {
		t.Errorf("response = %+v", resp)
	}
	if atomic.LoadInt32(f.requests) != 0 {
		t.Error("a fresh cache should not hit the API")
	}

	_, err = f.engine.Recommend(context.Background(), &models.RecommendQuery{Title: "Nonexistent Title"})
	if !errors.Is(err, ErrTitleNotFound) {
		t.Errorf("err = %v, want ErrTitleNotFound", err)
	}
	_, err = f.engine.Recommend(context.Background(), &models.RecommendQuery{Title: " "})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestEngine_SnapshotIsShared(t *testing.T) {
	f := newEngineFixture(t, shonenCatalog(), nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 6)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.engine.Snapshot(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			snaps[i] = s
		}(i)
	}
	wg.Wait()
	if f.builder.Builds() != 1 {
		t.Errorf("builds = %d, want 1", f.builder.Builds())
	}
	again, _ := f.engine.Snapshot(ctx)
	if again != snaps[0] {
		t.Error("later calls should reuse the published snapshot")
	}
}

func TestEngine_InvalidateReloadsWithoutRebuild(t *testing.T) {
	f := newEngineFixture(t, shonenCatalog(), nil)
	ctx := context.Background()
	first, err := f.engine.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	f.engine.Invalidate()
	second, err := f.engine.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("Invalidate should force a new snapshot")
	}
	if first.Matrix != second.Matrix || f.builder.Builds() != 1 {
		t.Error("an unchanged catalog should reuse the memoized matrix")
	}
}

func TestEngine_Refresh(t *testing.T) {
	live := models.CatalogSet{
		{ID: 5114, Title: "Fullmetal Alchemist: Brotherhood", Synopsis: "Two brothers search for the stone.", Genres: "Action"},
		{ID: 9253, Title: "Steins;Gate", Synopsis: "A scientist sends messages to the past.", Genres: "Sci-Fi"},
	}
	f := newEngineFixture(t, shonenCatalog(), live)
	ctx := context.Background()
	summary, err := f.engine.RefreshSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Records != 2 || summary.SessionID == "" || len(summary.PageWarnings) != 0 {
		t.Errorf("summary = %+v", summary)
	}
	status, err := f.engine.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Records != 2 || status.FromCache || !status.Fresh || status.MatrixDim != 2 {
		t.Errorf("status = %+v", status)
	}
	if status.CacheBackend != "json" || status.Embedder != "tfidf" || status.LastUpdated == storage.UnknownLastUpdated {
		t.Errorf("status = %+v", status)
	}
	if records, ok := f.store.Load(ctx); !ok || len(records) != 2 {
		t.Errorf("refresh should persist the new catalog, got %d records", len(records))
	}
}

func TestEngine_MissingCacheFetches(t *testing.T) {
	f := newEngineFixture(t, nil, shonenCatalog())
	resp, err := f.engine.Suggest(context.Background(), &models.SuggestQuery{Query: "bleech"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0].Title != "Bleach" {
		t.Errorf("suggestions = %+v", resp.Suggestions)
	}
	if atomic.LoadInt32(f.requests) != 1 {
		t.Errorf("requests = %d, want 1", atomic.LoadInt32(f.requests))
	}
}

func TestEngine_Search(t *testing.T) {
	f := newEngineFixture(t, shonenCatalog(), nil)
	resp, err := f.engine.Search(context.Background(), &models.SuggestQuery{Query: "pirate"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Hits[0].Record.Title != "One Piece" || resp.Hits[0].Rank != 1 {
		t.Errorf("search = %+v", resp)
	}
}

func TestEngine_EmptyCatalog(t *testing.T) {
	f := newEngineFixture(t, models.CatalogSet{}, nil)
	ctx := context.Background()
	sug, err := f.engine.Suggest(ctx, &models.SuggestQuery{Query: "naruto"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sug.Suggestions) != 0 {
		t.Errorf("suggestions = %v", sug.Suggestions)
	}
	if _, err := f.engine.Recommend(ctx, &models.RecommendQuery{Title: "naruto"}); !errors.Is(err, ErrTitleNotFound) {
		t.Errorf("err = %v, want ErrTitleNotFound", err)
	}
}

func TestEngine_CancelledCallerDoesNotAbortSharedLoad(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case arrived <- struct{}{}:
		default:
		}
		<-release
		_, _ = w.Write([]byte(`{"data":[{"mal_id":20,"title":"Naruto","synopsis":"A young ninja."},{"mal_id":269,"title":"Bleach","synopsis":"A soul reaper."}]}`))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(unblock)

	store := storage.NewJSONFileStore(filepath.Join(t.TempDir(), "anime_cache.json"))
	t.Cleanup(func() { _ = store.Close() })
	fetcher := catalog.NewFetcher(store, config.CatalogConfig{Endpoint: srv.URL, Pages: 1, Timeout: 5 * time.Second})
	e := NewEngine(fetcher, index.NewBuilder(embedding.NewTFIDFEmbedder()), store,
		config.RecommendConfig{DefaultTopN: 5, SuggestLimit: 5, MaxLimit: 50})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Snapshot(firstCtx)
		firstErr <- err
	}()
	select {
	case <-arrived:
	case <-time.After(3 * time.Second):
		t.Fatal("catalog request never reached the server")
	}
	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	secondDone := make(chan error, 1)
	go func() {
		resp, err := e.Recommend(context.Background(), &models.RecommendQuery{Title: "naruto"})
		if err == nil && resp.Resolved != "Naruto" {
			err = errors.New("resolved " + resp.Resolved)
		}
		secondDone <- err
	}()
	unblock()
	select {
	case err := <-secondDone:
		if err != nil {
			t.Fatalf("second caller err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}

	if records, ok := store.Load(context.Background()); !ok || len(records) != 2 {
		t.Errorf("shared load should persist the fetched catalog, got %d records (ok=%v)", len(records), ok)
	}
}

func TestEngine_InvalidateIfChanged(t *testing.T) {
	f := newEngineFixture(t, shonenCatalog(), nil)
	ctx := context.Background()
	first, err := f.engine.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if f.engine.InvalidateIfChanged(ctx) {
		t.Error("an unchanged cache should keep the snapshot")
	}
	if again, _ := f.engine.Snapshot(ctx); again != first {
		t.Error("snapshot was replaced although the cache did not change")
	}

	changed := append(shonenCatalog(), models.CatalogRecord{ID: 1, Title: "Cowboy Bebop", Synopsis: "Bounty hunters in space."})
	if err := f.store.Save(ctx, changed); err != nil {
		t.Fatal(err)
	}
	if !f.engine.InvalidateIfChanged(ctx) {
		t.Error("a changed cache should invalidate the snapshot")
	}
	second, err := f.engine.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Records) != len(changed) {
		t.Errorf("reloaded %d records, want %d", len(second.Records), len(changed))
	}
}
