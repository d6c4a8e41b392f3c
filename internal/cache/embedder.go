package cache

import (
	"context"
	"log/slog"

	"github.com/gptrag/aoai/internal/gateway"
)

// Embedder serves embeddings from a Store and fills it from next on a miss.
// Cache failures are logged and never fail the call.
type Embedder struct {
	next   gateway.Embedder
	store  *Store
	model  string
	logger *slog.Logger
}

var _ gateway.Embedder = (*Embedder)(nil)

// NewEmbedder wraps next. model names the deployment so vectors from
// different models never mix.
func NewEmbedder(next gateway.Embedder, store *Store, model string, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		next:   next,
		store:  store,
		model:  model,
		logger: logger.With("component", "cache"),
	}
}

func (e *Embedder) Embed(ctx context.Context, text string, opts ...gateway.CallOption) ([]float32, error) {
	vec, ok, err := e.store.Get(e.model, text)
	if err != nil {
		e.logger.Warn("cache lookup failed", "error", err)
	} else if ok {
		return vec, nil
	}

	vec, err = e.next.Embed(ctx, text, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(e.model, text, vec); err != nil {
		e.logger.Warn("cache store failed", "error", err)
	}
	return vec, nil
}
