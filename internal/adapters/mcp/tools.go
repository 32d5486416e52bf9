package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

func (s *Server) handleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requireQuery(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Classifier.Classify(ctx, query)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("classify failed", err), nil
	}
	return jsonResult(res)
}

type searchOutput struct {
	Results []domain.ScoredResult `json:"results"`
	Count   int                   `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requireQuery(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt("top_k", s.defaultTopK)
	if topK <= 0 {
		topK = s.defaultTopK
	}
	domainName := strings.TrimSpace(req.GetString("domain", ""))

	results, err := s.svc.Searcher.Search(ctx, query, domainName, topK)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("search failed", err), nil
	}
	return jsonResult(searchOutput{Results: results, Count: len(results)})
}

func (s *Server) handleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := requireQuery(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := s.svc.Chat.Handle(ctx, domain.QueryRequest{
		Query:          query,
		ConversationID: req.GetString("conversation_id", ""),
		AgentType:      req.GetString("agent_type", ""),
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("answer failed", err), nil
	}
	return jsonResult(resp)
}

func requireQuery(req mcp.CallToolRequest) (string, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query must not be blank")
	}
	return query, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
