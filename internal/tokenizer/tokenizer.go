// Package tokenizer counts tokens exactly the way the target model does and
// trims text to fit a token ceiling.
package tokenizer

import (
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const (
	// ReferenceModel is the model whose vocabulary budgets are measured against.
	ReferenceModel = "text-embedding-3-large"

	// ReferenceEncoding is the BPE vocabulary ReferenceModel uses. The
	// gpt-4 / gpt-35-turbo chat deployments share it.
	ReferenceEncoding = "cl100k_base"
)

// Counter measures text in tokens.
type Counter interface {
	Count(text string) int
}

// Estimator counts BPE tokens under a fixed vocabulary. It holds no mutable
// state and is safe for concurrent use.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// NewEstimator creates an Estimator bound to the reference vocabulary.
func NewEstimator() (*Estimator, error) {
	enc, err := tiktoken.GetEncoding(ReferenceEncoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding: %w", err)
	}
	return &Estimator{enc: enc}, nil
}

// NewEstimatorForModel creates an Estimator using whatever vocabulary
// tiktoken associates with model.
func NewEstimatorForModel(model string) (*Estimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: encoding for model %q: %w", model, err)
	}
	return &Estimator{enc: enc}, nil
}

// Count returns the exact number of tokens in s.
func (e *Estimator) Count(s string) int {
	if s == "" {
		return 0
	}
	// Markers like "<|endoftext|>" in user text are plain characters to the
	// service, not control tokens.
	return len(e.enc.EncodeOrdinary(s))
}

var (
	sharedOnce sync.Once
	shared     *Estimator
	sharedErr  error
)

// Default returns a process-wide Estimator for the reference vocabulary,
// loading it on first use.
func Default() (*Estimator, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = NewEstimator()
	})
	return shared, sharedErr
}
