package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gptrag/aoai/internal/tokenizer"
)

// Option configures a Client.
type Option func(*Client)

// WithDocument tags every log line of the client with the document being
// processed.
func WithDocument(tag string) Option {
	return func(c *Client) { c.document = tag }
}

// WithLogger sets the base logger. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient sets the HTTP client used for remote calls. Its transport
// is wrapped, not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCounter replaces the token counter used for ceilings. It must measure
// with the deployment's vocabulary or budgets drift.
func WithCounter(counter tokenizer.Counter) Option {
	return func(c *Client) { c.counter = counter }
}

// CallOption adjusts a single Complete or Embed call.
type CallOption func(*callOptions)

type callOptions struct {
	allowRetry bool
}

// WithoutRetry propagates a rate limit immediately instead of waiting out
// the server's hint once.
func WithoutRetry() CallOption {
	return func(o *callOptions) { o.allowRetry = false }
}

func resolveCallOptions(opts []CallOption) callOptions {
	o := callOptions{allowRetry: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
