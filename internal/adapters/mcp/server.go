// Package mcp exposes classification, retrieval and answering as MCP tools.
package mcp

import (
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/domain-router/internal/core/ports"
)

const (
	serverName    = "domain-router"
	serverVersion = "0.1.0"
)

var ErrMissingService = errors.New("mcp: classifier, searcher and chat services are required")

type Services struct {
	Classifier ports.QueryClassifier
	Searcher   ports.KnowledgeSearcher
	Chat       ports.ChatService
}

type Server struct {
	svc         Services
	defaultTopK int
	mcpServer   *server.MCPServer
}

func NewServer(svc Services, defaultTopK int) (*Server, error) {
	if svc.Classifier == nil || svc.Searcher == nil || svc.Chat == nil {
		return nil, ErrMissingService
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}

	s := &Server{
		svc:         svc,
		defaultTopK: defaultTopK,
		mcpServer: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s, nil
}

// ServeStdio blocks until stdin closes or the process is signalled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("classify_query",
		mcp.WithDescription("Classify a free-text query into one knowledge domain"),
		mcp.WithString("query", mcp.Required(), mcp.Description("the query to classify")),
	), s.handleClassify)

	s.mcpServer.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Hybrid semantic and keyword search over the domain collections"),
		mcp.WithString("query", mcp.Required(), mcp.Description("the search query")),
		mcp.WithString("domain", mcp.Description("restrict search to one domain; empty searches all")),
		mcp.WithNumber("top_k", mcp.Description("maximum number of results")),
	), s.handleSearch)

	s.mcpServer.AddTool(mcp.NewTool("answer_query",
		mcp.WithDescription("Route a query to a domain agent and answer it from retrieved passages"),
		mcp.WithString("query", mcp.Required(), mcp.Description("the question to answer")),
		mcp.WithString("conversation_id", mcp.Description("continue an existing conversation")),
		mcp.WithString("agent_type", mcp.Description("web, clinical or food_security")),
	), s.handleAnswer)
}
