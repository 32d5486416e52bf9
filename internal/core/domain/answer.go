package domain

const RefusalText = "I don't have enough information in my specialized knowledge base to answer this question."

type QueryRequest struct {
	Query          string         `json:"query"`
	Context        map[string]any `json:"context,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	AgentType      string         `json:"agent_type,omitempty"`
}

// QueryResult is what the retrieval pipeline hands back for one query.
type QueryResult struct {
	Response   string         `json:"response"`
	Sources    []ScoredResult `json:"sources"`
	Domain     string         `json:"domain"`
	Confidence float64        `json:"confidence"`
	Escalated  bool           `json:"escalated"`
	Outcome    OutcomeKind    `json:"outcome"`
}

type QueryResponse struct {
	QueryResult
	ConversationID string    `json:"conversation_id"`
	AgentUsed      AgentKind `json:"agent_used"`
}

type Passage struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

type GenerationRequest struct {
	Query    string
	Passages []Passage
	Domain   string
}

type OutcomeKind string

const (
	OutcomeAnswered OutcomeKind = "answered"
	OutcomeRefused  OutcomeKind = "refused"
	OutcomeFailed   OutcomeKind = "failed"
)

// Generation is the result of asking the generation collaborator. A refusal
// is a regular outcome, not an error.
type Generation struct {
	Kind   OutcomeKind
	Text   string
	Reason string
}

func Answered(text string) Generation {
	return Generation{Kind: OutcomeAnswered, Text: text}
}

func Refused(reason string) Generation {
	return Generation{Kind: OutcomeRefused, Text: RefusalText, Reason: reason}
}
