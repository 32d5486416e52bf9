package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentKind is the closed set of answer handlers.
type AgentKind string

const (
	AgentWeb          AgentKind = "web"
	AgentClinical     AgentKind = "clinical"
	AgentFoodSecurity AgentKind = "food_security"
)

func AgentKinds() []AgentKind {
	return []AgentKind{AgentWeb, AgentClinical, AgentFoodSecurity}
}

// ParseAgentKind resolves a request tag. Unknown or empty tags fall back to
// the web agent; ok is false in that case.
func ParseAgentKind(tag string) (AgentKind, bool) {
	switch AgentKind(tag) {
	case AgentClinical:
		return AgentClinical, true
	case AgentFoodSecurity:
		return AgentFoodSecurity, true
	case AgentWeb:
		return AgentWeb, true
	default:
		return AgentWeb, false
	}
}

// AgentForDomain maps a classified domain to the agent that answers it.
func AgentForDomain(name string) AgentKind {
	switch name {
	case DomainClinical:
		return AgentClinical
	case DomainFoodSecurity:
		return AgentFoodSecurity
	default:
		return AgentWeb
	}
}

// Domain is the collection a specialised agent is bound to. The web agent
// has none and answers in whatever domain it is handed.
func (k AgentKind) Domain() string {
	switch k {
	case AgentClinical:
		return DomainClinical
	case AgentFoodSecurity:
		return DomainFoodSecurity
	default:
		return ""
	}
}
