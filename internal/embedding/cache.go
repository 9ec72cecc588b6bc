package embedding

import "github.com/hyperjump/animerec/pkg/utils"

// EmbeddingCache maps feature texts to their vectors so rebuilding a catalog
// that shares most synopses only encodes the changed ones.
type EmbeddingCache = utils.LRU[string, []float32]

// NewEmbeddingCache creates a cache holding at most capacity vectors.
// A non-positive capacity disables caching.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return utils.NewLRU[string, []float32](capacity)
}
