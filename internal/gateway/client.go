// Package gateway is the model access layer used by ingestion: chat
// completion and embedding against Azure OpenAI, with inputs trimmed to the
// model's token ceiling and a single server-paced retry on rate limiting.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/gptrag/aoai/internal/config"
	"github.com/gptrag/aoai/internal/tokenizer"
)

const (
	// Component tags every log line emitted by a Client.
	Component = "aoai"

	// CompletionCeiling is the input token limit for Complete.
	CompletionCeiling = 128_000
	// EmbeddingCeiling is the input token limit for Embed.
	EmbeddingCeiling = 8_192

	// DefaultMaxOutputTokens applies when Complete is given a non-positive cap.
	DefaultMaxOutputTokens = 800

	SystemPrompt = "You are a helpful assistant."
)

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxOutputTokens int, opts ...CallOption) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string, opts ...CallOption) ([]float32, error)
}

// Client calls Azure OpenAI. Its configuration is fixed at construction and
// it is safe for concurrent use.
type Client struct {
	cfg     config.AzureConfig
	missing []string
	api     *openai.Client
	counter tokenizer.Counter
	logger  *slog.Logger

	document   string
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
}

var (
	_ Completer = (*Client)(nil)
	_ Embedder  = (*Client)(nil)
)

// NewFromEnv builds a Client from the AZURE_* environment variables.
func NewFromEnv(opts ...Option) *Client {
	return New(config.FromEnv(), opts...)
}

// New builds a Client. It never fails: every missing setting is logged as a
// warning and reported by Missing, and calls needing it fail with
// ErrNotConfigured. An embedding-only client is therefore usable.
func New(cfg config.AzureConfig, opts ...Option) *Client {
	cfg = cfg.Trimmed()
	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("component", Component)
	if c.document != "" {
		c.logger = c.logger.With("document", c.document)
	}

	c.missing = cfg.Missing()
	for _, key := range c.missing {
		c.logger.Warn("setting is not set", "key", key)
	}

	apiCfg := openai.DefaultAzureConfig(cfg.APIKey, strings.TrimRight(cfg.Endpoint, "/"))
	if cfg.APIVersion != "" {
		apiCfg.APIVersion = cfg.APIVersion
	}
	// Requests name deployments directly.
	apiCfg.AzureModelMapperFunc = func(model string) string { return model }
	apiCfg.HTTPClient = withHintTransport(c.httpClient)
	c.api = openai.NewClientWithConfig(apiCfg)

	c.logger.Debug("client initialized", "endpoint", cfg.Endpoint, "api_version", apiCfg.APIVersion)
	return c
}

// Missing returns the environment keys that were unset at construction.
func (c *Client) Missing() []string {
	return append([]string(nil), c.missing...)
}

// CanComplete reports whether completion settings are present.
func (c *Client) CanComplete() bool {
	return c.cfg.Endpoint != "" && c.cfg.CompletionDeployment != ""
}

// CanEmbed reports whether embedding settings are present.
func (c *Client) CanEmbed() bool {
	return c.cfg.Endpoint != "" && c.cfg.EmbeddingDeployment != ""
}

// Complete sends prompt as the user turn of a chat with a fixed system
// prompt and returns the generated text. prompt is truncated to
// CompletionCeiling tokens first.
func (c *Client) Complete(ctx context.Context, prompt string, maxOutputTokens int, opts ...CallOption) (string, error) {
	const op = "complete"
	log := c.logger.With("op", op, "call_id", uuid.NewString())

	if err := c.requireConfigured(log, op, config.EnvCompletionDeployment, c.cfg.CompletionDeployment); err != nil {
		return "", err
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxOutputTokens
	}

	prompt, err := c.fit(log, op, prompt, CompletionCeiling)
	if err != nil {
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model: c.cfg.CompletionDeployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxOutputTokens,
	}

	var text string
	err = c.call(ctx, log, op, resolveCallOptions(opts), func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices", errEmptyResponse)
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	return text, err
}

// Embed returns the embedding of text, truncated to EmbeddingCeiling tokens.
func (c *Client) Embed(ctx context.Context, text string, opts ...CallOption) ([]float32, error) {
	const op = "embed"
	log := c.logger.With("op", op, "call_id", uuid.NewString())

	if err := c.requireConfigured(log, op, config.EnvEmbeddingDeployment, c.cfg.EmbeddingDeployment); err != nil {
		return nil, err
	}

	text, err := c.fit(log, op, text, EmbeddingCeiling)
	if err != nil {
		return nil, err
	}

	req := openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingDeployment),
	}

	var vec []float32
	err = c.call(ctx, log, op, resolveCallOptions(opts), func(ctx context.Context) error {
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("%w: no embedding data", errEmptyResponse)
		}
		vec = resp.Data[0].Embedding
		return nil
	})
	return vec, err
}

// call runs attempt at most twice. Only a rate limit with a usable wait hint,
// while retry is still allowed, earns the second attempt.
func (c *Client) call(ctx context.Context, log *slog.Logger, op string, o callOptions, attempt func(context.Context) error) error {
	allowRetry := o.allowRetry
	retried := false

	for {
		actx, hint := withWaitHint(ctx)
		err := attempt(actx)
		if err == nil {
			return nil
		}

		e := classify(op, err, hint)
		e.Retried = retried

		if e.Kind == KindRateLimited && allowRetry && e.RetryAfter > 0 {
			log.Info("rate limited, retrying", "wait", e.RetryAfter)
			if serr := c.sleep(ctx, e.RetryAfter); serr != nil {
				e = &Error{Op: op, Kind: KindUnexpected, Err: serr}
				log.Error("interrupted while waiting to retry", "kind", e.Kind.String(), "error", serr)
				return e
			}
			allowRetry = false
			retried = true
			continue
		}

		log.Error(e.Kind.String(), "kind", e.Kind.String(), "status", e.StatusCode, "retried", e.Retried, "error", err)
		return e
	}
}

// fit truncates text to ceiling tokens.
func (c *Client) fit(log *slog.Logger, op, text string, ceiling int) (string, error) {
	counter := c.counter
	if counter == nil {
		est, err := tokenizer.Default()
		if err != nil {
			log.Error("token estimator unavailable", "error", err)
			return "", &Error{Op: op, Kind: KindUnexpected, Err: err}
		}
		counter = est
	}

	res := tokenizer.Truncate(counter, text, ceiling)
	if res.Truncated() {
		log.Info("truncated input",
			"from_tokens", res.Original,
			"to_tokens", res.Final,
			"ceiling", ceiling,
			"iterations", res.Iterations,
		)
	}
	return res.Text, nil
}

func (c *Client) requireConfigured(log *slog.Logger, op, key, deployment string) error {
	missing := key
	switch {
	case c.cfg.Endpoint == "":
		missing = config.EnvEndpoint
	case deployment != "":
		return nil
	}
	err := &Error{Op: op, Kind: KindUnexpected, Err: fmt.Errorf("%w: %s is not set", ErrNotConfigured, missing)}
	log.Error("client not configured", "key", missing)
	return err
}
