package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gptrag/aoai/internal/gateway"
	"github.com/gptrag/aoai/internal/tokenizer"
)

func (s *Server) handleCountTokens(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d", s.counter.Count(text))), nil
}

type truncateResult struct {
	Text       string `json:"text"`
	Original   int    `json:"original_tokens"`
	Final      int    `json:"final_tokens"`
	Iterations int    `json:"iterations"`
}

func (s *Server) handleTruncate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	ceiling := req.GetInt("ceiling", -1)
	if ceiling < 0 {
		return mcp.NewToolResultError("ceiling must be a non-negative integer"), nil
	}

	res := tokenizer.Truncate(s.counter, text, ceiling)
	return jsonResult(truncateResult{
		Text:       res.Text,
		Original:   res.Original,
		Final:      res.Final,
		Iterations: res.Iterations,
	})
}

func (s *Server) handleComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.completer == nil {
		return mcp.NewToolResultError("completion is not configured"), nil
	}
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: prompt"), nil
	}
	maxTokens := req.GetInt("max_tokens", gateway.DefaultMaxOutputTokens)

	text, err := s.completer.Complete(ctx, prompt, maxTokens)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("completion failed: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

type embedResult struct {
	Dimension int       `json:"dimension"`
	Embedding []float32 `json:"embedding"`
}

func (s *Server) handleEmbed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.embedder == nil {
		return mcp.NewToolResultError("embedding is not configured"), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embedding failed: %v", err)), nil
	}
	return jsonResult(embedResult{Dimension: len(vec), Embedding: vec})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
