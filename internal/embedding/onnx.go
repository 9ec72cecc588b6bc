//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/pkg/utils"
)

var (
	encoderInputs  = []string{"input_ids", "attention_mask", "token_type_ids"}
	encoderOutputs = []string{"last_hidden_state"}
)

// ONNXEmbedder encodes feature texts with a sentence-encoder export such as
// all-MiniLM-L6-v2. Token states are mean-pooled over the attention mask and
// L2-normalised, so inner products are cosine similarities. Requires CGO and the
// onnxruntime shared library.
type ONNXEmbedder struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	io        *encoderTensors
	tokenizer Tokenizer
	dims      int
	maxTokens int
	cache     *EmbeddingCache
}

// encoderTensors are bound to the session once and rewritten for every run.
type encoderTensors struct {
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	hidden        *ort.Tensor[float32]
}

func newEncoderTensors(maxTokens, dims int) (*encoderTensors, error) {
	t := &encoderTensors{}
	tokenShape := ort.NewShape(1, int64(maxTokens))
	var err error
	if t.inputIDs, err = ort.NewEmptyTensor[int64](tokenShape); err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	if t.attentionMask, err = ort.NewEmptyTensor[int64](tokenShape); err != nil {
		t.destroy()
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	if t.tokenTypeIDs, err = ort.NewEmptyTensor[int64](tokenShape); err != nil {
		t.destroy()
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	if t.hidden, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(maxTokens), int64(dims))); err != nil {
		t.destroy()
		return nil, fmt.Errorf("last_hidden_state tensor: %w", err)
	}
	return t, nil
}

func (t *encoderTensors) inputs() []ort.ArbitraryTensor {
	return []ort.ArbitraryTensor{t.inputIDs, t.attentionMask, t.tokenTypeIDs}
}

func (t *encoderTensors) destroy() {
	if t.inputIDs != nil {
		_ = t.inputIDs.Destroy()
	}
	if t.attentionMask != nil {
		_ = t.attentionMask.Destroy()
	}
	if t.tokenTypeIDs != nil {
		_ = t.tokenTypeIDs.Destroy()
	}
	if t.hidden != nil {
		_ = t.hidden.Destroy()
	}
	*t = encoderTensors{}
}

// NewONNXEmbedder loads the model at cfg.ModelPath and encodes text with tok.
// The runtime environment is initialised on first use.
func NewONNXEmbedder(cfg config.EmbeddingConfig, tok Tokenizer) (*ONNXEmbedder, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}
	tensors, err := newEncoderTensors(cfg.MaxTokens, cfg.Dimensions)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewAdvancedSession(cfg.ModelPath, encoderInputs, encoderOutputs,
		tensors.inputs(), []ort.ArbitraryTensor{tensors.hidden}, nil)
	if err != nil {
		tensors.destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", cfg.ModelPath, err)
	}
	return &ONNXEmbedder{
		session:   session,
		io:        tensors,
		tokenizer: tok,
		dims:      cfg.Dimensions,
		maxTokens: cfg.MaxTokens,
		cache:     NewEmbeddingCache(cfg.CacheSize),
	}, nil
}

// encode runs one feature text through the model. Callers hold e.mu.
func (e *ONNXEmbedder) encode(text string) ([]float32, error) {
	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.io.inputIDs.GetData(), ids)
	copy(e.io.attentionMask.GetData(), mask)
	copy(e.io.tokenTypeIDs.GetData(), types)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	vec := meanPool(e.io.hidden.GetData(), mask, e.dims)
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch encodes texts in order. Repeated feature texts, within a batch or
// across rebuilds, are served from the LRU cache.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("onnx embedder is closed")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if vec, ok := e.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		vec, err := e.encode(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		e.cache.Set(text, vec)
		out[i] = vec
	}
	return out, nil
}

// Name returns "onnx".
func (e *ONNXEmbedder) Name() string { return "onnx" }

// Close releases the session and its tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.io != nil {
		e.io.destroy()
		e.io = nil
	}
	return err
}
