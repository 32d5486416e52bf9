package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
)

// AgentHandler answers a query for one agent kind.
type AgentHandler interface {
	Handle(ctx context.Context, query string, cls domain.ClassificationResult) (*domain.QueryResult, error)
}

// retrievalAgent answers through the retrieval pipeline. A bound domain
// overrides whatever the classifier picked.
type retrievalAgent struct {
	answerer ports.QueryAnswerer
	domain   string
}

func (a *retrievalAgent) Handle(ctx context.Context, query string, cls domain.ClassificationResult) (*domain.QueryResult, error) {
	if a.domain != "" {
		cls.Domain = a.domain
	}
	return a.answerer.AnswerInDomain(ctx, query, cls)
}

// DefaultAgents binds every agent kind to the retrieval pipeline.
func DefaultAgents(answerer ports.QueryAnswerer) map[domain.AgentKind]AgentHandler {
	agents := make(map[domain.AgentKind]AgentHandler, len(domain.AgentKinds()))
	for _, kind := range domain.AgentKinds() {
		agents[kind] = &retrievalAgent{answerer: answerer, domain: kind.Domain()}
	}
	return agents
}

type ChatUseCase struct {
	classifier    ports.QueryClassifier
	conversations ports.ConversationStore
	agents        map[domain.AgentKind]AgentHandler
	now           func() time.Time
}

// NewChatUseCase fails unless a handler exists for every agent kind.
func NewChatUseCase(
	classifier ports.QueryClassifier,
	conversations ports.ConversationStore,
	agents map[domain.AgentKind]AgentHandler,
) (*ChatUseCase, error) {
	for _, kind := range domain.AgentKinds() {
		if agents[kind] == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "new chat usecase", fmt.Errorf("no handler for agent %q", kind))
		}
	}
	return &ChatUseCase{
		classifier:    classifier,
		conversations: conversations,
		agents:        agents,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (uc *ChatUseCase) Handle(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	if err := uc.conversations.Append(ctx, conversationID, domain.Turn{
		Role:      domain.RoleUser,
		Content:   req.Query,
		CreatedAt: uc.now(),
	}); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	kind, cls, err := uc.route(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := uc.agents[kind].Handle(ctx, req.Query, cls)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", kind, err)
	}

	if err := uc.conversations.Append(ctx, conversationID, domain.Turn{
		Role:      domain.RoleAssistant,
		Content:   result.Response,
		CreatedAt: uc.now(),
	}); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	return &domain.QueryResponse{
		QueryResult:    *result,
		ConversationID: conversationID,
		AgentUsed:      kind,
	}, nil
}

// route resolves the agent. An explicit specialised agent pins its own
// domain; the web agent, explicit or fallen back to, answers in the
// classified domain.
func (uc *ChatUseCase) route(ctx context.Context, req domain.QueryRequest) (domain.AgentKind, domain.ClassificationResult, error) {
	explicit := false
	var kind domain.AgentKind
	if tag := strings.TrimSpace(req.AgentType); tag != "" {
		var ok bool
		kind, ok = domain.ParseAgentKind(tag)
		if !ok {
			slog.Warn("unknown_agent_type_fallback", "agent_type", tag, "fallback", kind)
		}
		if bound := kind.Domain(); bound != "" {
			return kind, domain.ClassificationResult{Domain: bound, Confidence: 1, Route: domain.RouteExplicit}, nil
		}
		explicit = true
	}

	cls, err := uc.classifier.Classify(ctx, req.Query)
	if err != nil {
		return "", domain.ClassificationResult{}, fmt.Errorf("classify query: %w", err)
	}
	if !explicit {
		kind = domain.AgentForDomain(cls.Domain)
	}
	return kind, cls, nil
}

func (uc *ChatUseCase) History(ctx context.Context, conversationID string) ([]domain.Turn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "conversation history", fmt.Errorf("conversation id is required"))
	}
	turns, err := uc.conversations.History(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return turns, nil
}
