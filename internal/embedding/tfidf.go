package embedding

import (
	"context"
	"math"
	"sort"

	"github.com/hyperjump/animerec/pkg/utils"
)

// TFIDFEmbedder fits a term-weighting model over each batch it is given. The
// vocabulary is the sorted set of batch terms, so the same texts always produce
// the same vectors.
type TFIDFEmbedder struct{}

// NewTFIDFEmbedder returns a TF-IDF embedder.
func NewTFIDFEmbedder() *TFIDFEmbedder {
	return &TFIDFEmbedder{}
}

// EmbedBatch returns one L2-normalised TF-IDF row per text. Raw term counts are
// weighted by the smoothed IDF ln((1+n)/(1+df)) + 1. A text with no terms gets a
// zero vector.
func (e *TFIDFEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	counts := make([]map[string]int, len(texts))
	df := make(map[string]int)
	for i, text := range texts {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tf := make(map[string]int)
		for _, term := range Terms(text) {
			tf[term]++
		}
		for term := range tf {
			df[term]++
		}
		counts[i] = tf
	}

	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)
	column := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	n := float64(len(texts))
	for j, term := range vocab {
		column[term] = j
		idf[j] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	out := make([][]float32, len(texts))
	for i, tf := range counts {
		row := make([]float32, len(vocab))
		for term, c := range tf {
			j := column[term]
			row[j] = float32(float64(c) * idf[j])
		}
		utils.NormalizeL2(row)
		out[i] = row
	}
	return out, nil
}

// Name returns "tfidf".
func (e *TFIDFEmbedder) Name() string { return "tfidf" }

// Close is a no-op.
func (e *TFIDFEmbedder) Close() error { return nil }
