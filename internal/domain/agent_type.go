package domain

import "encoding/json"

// AgentTypeKind enumerates the fixed agent-type variants. Custom carries an
// arbitrary subagent-type name in AgentType.Name and has no fixed Kind
// constant of its own.
type AgentTypeKind int

const (
	AgentGeneralPurpose AgentTypeKind = iota
	AgentExplore
	AgentPlan
	AgentCodeReviewer
	AgentFileSearch
	AgentCustom
)

var agentKindNames = map[AgentTypeKind]string{
	AgentGeneralPurpose: "general-purpose",
	AgentExplore:        "explore",
	AgentPlan:           "plan",
	AgentCodeReviewer:   "code-reviewer",
	AgentFileSearch:     "file-search",
	AgentCustom:         "custom",
}

var agentKindFromName = map[string]AgentTypeKind{
	"general-purpose": AgentGeneralPurpose,
	"explore":         AgentExplore,
	"plan":            AgentPlan,
	"code-reviewer":   AgentCodeReviewer,
	"file-search":     AgentFileSearch,
}

// AgentType identifies what kind of agent (main session or subagent) a
// session represents. The zero value is AgentGeneralPurpose.
type AgentType struct {
	Kind AgentTypeKind
	// Name holds the subagent type string when Kind == AgentCustom. Empty
	// for every fixed kind.
	Name string
}

// NewCustomAgentType returns an AgentType for a subagent type name not in
// the fixed set.
func NewCustomAgentType(name string) AgentType {
	return AgentType{Kind: AgentCustom, Name: name}
}

// ParseAgentType maps a raw agent-type string (as reported by SubagentStart
// hooks) into an AgentType, falling back to AgentCustom for anything not in
// the fixed vocabulary.
func ParseAgentType(s string) AgentType {
	if kind, ok := agentKindFromName[s]; ok {
		return AgentType{Kind: kind}
	}
	if s == "" {
		return AgentType{Kind: AgentGeneralPurpose}
	}
	return NewCustomAgentType(s)
}

func (a AgentType) String() string {
	if a.Kind == AgentCustom {
		return a.Name
	}
	if s, ok := agentKindNames[a.Kind]; ok {
		return s
	}
	return "general-purpose"
}

func (a AgentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *AgentType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = ParseAgentType(s)
	return nil
}
