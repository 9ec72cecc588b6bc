// Package index builds and memoizes the pairwise similarity matrix of a catalog.
package index

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/animerec/internal/embedding"
	"github.com/hyperjump/animerec/internal/fingerprint"
	"github.com/hyperjump/animerec/internal/metrics"
	"github.com/hyperjump/animerec/internal/models"
	"github.com/hyperjump/animerec/internal/vector"
	"github.com/hyperjump/animerec/pkg/utils"
)

const defaultCacheSize = 4

// Builder turns a CatalogSet into a cosine similarity matrix over its feature
// texts. Matrices are memoized by dataset fingerprint and at most one build per
// fingerprint runs at a time.
type Builder struct {
	embedder embedding.Embedder
	logger   *zap.Logger
	capacity int
	group    singleflight.Group
	memo     *utils.LRU[string, *vector.Matrix]
	builds   atomic.Int64
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger for build timings.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = utils.OrNop(l) }
}

// WithCacheSize sets how many matrices are kept. Non-positive values keep the default.
func WithCacheSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// NewBuilder returns a builder that vectorises feature texts with embedder.
func NewBuilder(embedder embedding.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder: embedder,
		logger:   zap.NewNop(),
		capacity: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.memo = utils.NewLRU[string, *vector.Matrix](b.capacity)
	return b
}

// Build returns the similarity matrix for records, computing it only when no
// matrix for the same fingerprint is memoized. An empty set yields a 0x0 matrix
// without calling the embedder. records is not modified.
func (b *Builder) Build(ctx context.Context, records models.CatalogSet) (*vector.Matrix, error) {
	if len(records) == 0 {
		m, _ := vector.BuildCosineMatrix(ctx, nil)
		return m, nil
	}
	fp := fingerprint.Compute(records)
	if m, ok := b.memo.Get(fp); ok {
		metrics.RecordIndexMemo(true)
		b.logger.Debug("Similarity matrix served from memo", zap.String("fingerprint", fp))
		return m, nil
	}
	metrics.RecordIndexMemo(false)

	v, err, shared := b.group.Do(fp, func() (interface{}, error) {
		if m, ok := b.memo.Get(fp); ok {
			return m, nil
		}
		m, err := b.compute(ctx, records)
		if err != nil {
			return nil, err
		}
		b.memo.Set(fp, m)
		b.logger.Info("Built similarity matrix",
			zap.String("fingerprint", fp),
			zap.Int("records", len(records)),
		)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		b.logger.Debug("Joined in-flight similarity build", zap.String("fingerprint", fp))
	}
	return v.(*vector.Matrix), nil
}

func (b *Builder) compute(ctx context.Context, records models.CatalogSet) (*vector.Matrix, error) {
	start := time.Now()
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.FeatureText()
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed feature texts: %w", err)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(records))
	}
	m, err := vector.BuildCosineMatrix(ctx, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build similarity matrix: %w", err)
	}
	b.builds.Add(1)
	metrics.RecordIndexBuild(b.embedder.Name(), time.Since(start))
	return m, nil
}

// Builds returns how many matrices have been computed (memo hits excluded).
func (b *Builder) Builds() int64 {
	return b.builds.Load()
}

// EmbedderName names the vectorisation strategy in use.
func (b *Builder) EmbedderName() string {
	return b.embedder.Name()
}
