package cli

import (
	"github.com/spf13/cobra"

	"github.com/gptrag/aoai/internal/gateway"
	"github.com/gptrag/aoai/internal/mcp"
	"github.com/gptrag/aoai/internal/tokenizer"
)

func newServeCmd(e *env) *cobra.Command {
	var useCache bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the aoai tools over MCP on stdio",
		Long: `Run an MCP server on stdin/stdout exposing count_tokens, truncate, complete
and embed. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			est, err := tokenizer.Default()
			if err != nil {
				return err
			}

			completer, embedder, release, err := e.models(useCache || e.cfg.Cache.Enabled)
			if err != nil {
				return err
			}
			defer release()

			e.logger.Info("serving MCP on stdio",
				"completion", completer != nil,
				"embedding", embedder != nil,
			)
			return mcp.NewServer(version, completer, embedder, est).ServeStdio()
		},
	}

	cmd.Flags().BoolVar(&useCache, "cache", false, "serve and store vectors in the local cache")
	return cmd
}

// models builds one gateway client and returns it as a Completer and an
// Embedder, each nil when its deployment is not configured.
func (e *env) models(useCache bool) (gateway.Completer, gateway.Embedder, func(), error) {
	client := e.client()

	var completer gateway.Completer
	if client.CanComplete() {
		completer = client
	}
	if !client.CanEmbed() {
		return completer, nil, func() {}, nil
	}

	embedder, release, err := e.embedder(client, useCache)
	if err != nil {
		return nil, nil, nil, err
	}
	return completer, embedder, release, nil
}
