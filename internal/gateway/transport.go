package gateway

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// waitHint holds the headers of a throttled response for one attempt.
type waitHint struct {
	mu     sync.Mutex
	header http.Header
}

type waitHintKey struct{}

// withWaitHint returns a context whose requests report their 429 headers
// into the returned holder.
func withWaitHint(ctx context.Context) (context.Context, *waitHint) {
	h := &waitHint{}
	return context.WithValue(ctx, waitHintKey{}, h), h
}

func (h *waitHint) record(header http.Header) {
	h.mu.Lock()
	h.header = header.Clone()
	h.mu.Unlock()
}

// wait returns the recorded server wait hint.
func (h *waitHint) wait() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.header == nil {
		return 0, false
	}
	return parseWaitHint(h.header)
}

// parseWaitHint reads Retry-After as (possibly fractional) seconds, falling
// back to Azure's retry-after-ms. Anything non-numeric, non-positive or too
// large for a time.Duration is no hint at all.
func parseWaitHint(header http.Header) (time.Duration, bool) {
	if d, ok := hintDuration(header.Get("Retry-After"), time.Second); ok {
		return d, true
	}
	return hintDuration(header.Get("Retry-After-Ms"), time.Millisecond)
}

func hintDuration(v string, unit time.Duration) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || !(n > 0) || math.IsInf(n, 0) {
		return 0, false
	}
	ns := n * float64(unit)
	if ns >= math.MaxInt64 {
		return 0, false
	}
	return time.Duration(ns), true
}

// hintTransport copies the headers of 429 responses into the waitHint
// carried by the request context. go-openai's error types drop headers.
type hintTransport struct {
	base http.RoundTripper
}

func (t *hintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if h, ok := req.Context().Value(waitHintKey{}).(*waitHint); ok {
			h.record(resp.Header)
		}
	}
	return resp, nil
}

// withHintTransport returns a copy of hc whose transport captures wait hints.
func withHintTransport(hc *http.Client) *http.Client {
	if hc == nil {
		hc = &http.Client{}
	}
	wrapped := *hc
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped.Transport = &hintTransport{base: base}
	return &wrapped
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
