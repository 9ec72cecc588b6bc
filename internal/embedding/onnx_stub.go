//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"

	"github.com/hyperjump/animerec/internal/config"
)

var errNoCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEmbedder is unavailable without CGO; New falls back to TF-IDF.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails without CGO.
func NewONNXEmbedder(config.EmbeddingConfig, Tokenizer) (*ONNXEmbedder, error) {
	return nil, errNoCGO
}

// EmbedBatch always fails without CGO.
func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errNoCGO
}

// Name returns "onnx".
func (e *ONNXEmbedder) Name() string { return "onnx" }

// Close is a no-op.
func (e *ONNXEmbedder) Close() error { return nil }
