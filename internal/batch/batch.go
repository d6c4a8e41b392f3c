// Package batch embeds many inputs concurrently through a gateway.Embedder.
package batch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/gptrag/aoai/internal/gateway"
)

// Options controls a batch run.
type Options struct {
	// Concurrency is the number of workers. Values below 1 mean 1.
	Concurrency int
	// RequestsPerSecond paces calls across all workers. 0 disables pacing.
	RequestsPerSecond float64
	// OnProgress is called once per finished input, from worker goroutines.
	OnProgress func()
}

// Result is the outcome for one input.
type Result struct {
	Index  int
	Input  string
	Vector []float32
	Err    error
}

// Run embeds inputs and returns one Result per input in input order. A
// failed input does not stop the others; cancelling ctx fails the inputs not
// yet started.
func Run(ctx context.Context, emb gateway.Embedder, inputs []string, opts Options) []Result {
	results := make([]Result, len(inputs))
	if len(inputs) == 0 {
		return results
	}

	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = embedOne(ctx, emb, limiter, i, inputs[i])
				if opts.OnProgress != nil {
					opts.OnProgress()
				}
			}
		}()
	}

	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func embedOne(ctx context.Context, emb gateway.Embedder, limiter *rate.Limiter, i int, input string) Result {
	res := Result{Index: i, Input: input}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}
	}
	res.Vector, res.Err = emb.Embed(ctx, input)
	return res
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
