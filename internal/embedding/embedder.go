// Package embedding turns catalog feature texts into vectors, either with a
// TF-IDF model fit per batch or with an ONNX sentence encoder.
package embedding

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/pkg/utils"
)

// Embedder produces one vector per input text. Row i of the result belongs to
// texts[i]. Vectors are only comparable within a single batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the strategy in status output and metrics.
	Name() string
	Close() error
}

// New returns the embedder selected by cfg. When the ONNX strategy cannot be
// initialised it logs a warning and falls back to TF-IDF.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) Embedder {
	logger = utils.OrNop(logger)
	if cfg.Strategy != config.StrategyONNX {
		return NewTFIDFEmbedder()
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		logger.Warn("ONNX model not available, falling back to TF-IDF",
			zap.String("model_path", cfg.ModelPath),
			zap.Error(err),
		)
		return NewTFIDFEmbedder()
	}
	vocab, err := LoadWordPieceVocab(cfg.VocabFile())
	if err != nil {
		logger.Warn("ONNX vocabulary not available, falling back to TF-IDF",
			zap.String("vocab_path", cfg.VocabFile()),
			zap.Error(err),
		)
		return NewTFIDFEmbedder()
	}
	tok, err := NewWordPieceTokenizer(vocab)
	if err != nil {
		logger.Warn("ONNX vocabulary unusable, falling back to TF-IDF",
			zap.String("vocab_path", cfg.VocabFile()),
			zap.Error(err),
		)
		return NewTFIDFEmbedder()
	}
	e, err := NewONNXEmbedder(cfg, tok)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, falling back to TF-IDF",
			zap.String("model_path", cfg.ModelPath),
			zap.Error(err),
		)
		return NewTFIDFEmbedder()
	}
	logger.Info("Using ONNX embedder", zap.String("model_path", cfg.ModelPath))
	return e
}
