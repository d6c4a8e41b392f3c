// Package mcp exposes token counting, completion and embedding as MCP tools
// over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gptrag/aoai/internal/gateway"
	"github.com/gptrag/aoai/internal/tokenizer"
)

// Server serves aoai tools.
type Server struct {
	completer gateway.Completer
	embedder  gateway.Embedder
	counter   tokenizer.Counter
	mcp       *server.MCPServer
}

// NewServer registers the tools. completer or embedder may be nil, in which
// case the matching tool reports that it is unavailable.
func NewServer(version string, completer gateway.Completer, embedder gateway.Embedder, counter tokenizer.Counter) *Server {
	s := &Server{
		completer: completer,
		embedder:  embedder,
		counter:   counter,
		mcp:       server.NewMCPServer("aoai", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("count_tokens",
		mcp.WithDescription("Count tokens in text using the deployment's BPE vocabulary."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to measure")),
	), s.handleCountTokens)

	s.mcp.AddTool(mcp.NewTool("truncate",
		mcp.WithDescription("Cut text from the end until it fits a token ceiling."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to truncate")),
		mcp.WithNumber("ceiling", mcp.Required(), mcp.Description("Maximum number of tokens")),
	), s.handleTruncate)

	s.mcp.AddTool(mcp.NewTool("complete",
		mcp.WithDescription("Generate a completion for a prompt. Oversized prompts are truncated."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("User prompt")),
		mcp.WithNumber("max_tokens", mcp.Description("Maximum tokens to generate (default 800)")),
	), s.handleComplete)

	s.mcp.AddTool(mcp.NewTool("embed",
		mcp.WithDescription("Embed text. Oversized input is truncated."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to embed")),
	), s.handleEmbed)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
