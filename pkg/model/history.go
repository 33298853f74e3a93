package model

import "time"

// HistoryKind discriminates the tagged AgentHistory item variants, mirroring
// the source game's discriminated message-history union: every turn an
// agent takes is either a user-style prompt, an assistant tool invocation,
// or a tool-feedback acknowledgement.
type HistoryKind string

const (
	HistoryKindUserInput         HistoryKind = "user-input"
	HistoryKindAssistantResponse HistoryKind = "assistant-response"
	HistoryKindToolFeedback      HistoryKind = "tool-feedback"
)

// HistoryItem is implemented by each of the three history-item variants.
// A type switch on Kind() recovers the concrete payload.
type HistoryItem interface {
	Kind() HistoryKind
	occurredAt() time.Time
}

// UserInput is a system/observation/action prompt rendered for the agent.
type UserInput struct {
	Timestamp   time.Time
	UserMessage string
}

func (UserInput) Kind() HistoryKind        { return HistoryKindUserInput }
func (u UserInput) occurredAt() time.Time  { return u.Timestamp }

// AssistantResponse is the agent's tool invocation, carrying both the raw
// call and its hydrated, type-checked argument struct.
type AssistantResponse struct {
	Timestamp     time.Time
	Reasoning     *string
	ToolCalls     []ToolCall
	HydratedTool  any // one of the *Args structs in model.go
}

func (AssistantResponse) Kind() HistoryKind       { return HistoryKindAssistantResponse }
func (a AssistantResponse) occurredAt() time.Time { return a.Timestamp }

// ToolFeedback is an acknowledgement fed back to the agent after its tool
// call was accepted (or rejected) by the orchestrator.
type ToolFeedback struct {
	Timestamp time.Time
	Results   []ToolResult
}

func (ToolFeedback) Kind() HistoryKind        { return HistoryKindToolFeedback }
func (t ToolFeedback) occurredAt() time.Time  { return t.Timestamp }

// ToolCall is an LLM's (or the trainer's) request to invoke a tool.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is the textual outcome of a ToolCall, folded back into history.
type ToolResult struct {
	ToolCallID string
	Output     string
}

// AgentHistory is the append-only per-agent turn log that feeds message
// rendering. LastSeenEventCounter records the highest eventlog counter
// already folded into this history, so the orchestrator only renders the
// delta at each decision.
type AgentHistory struct {
	AgentID              string
	Items                []HistoryItem
	LastSeenEventCounter int
}

// NewAgentHistory creates an empty history for agentID.
func NewAgentHistory(agentID string) *AgentHistory {
	return &AgentHistory{AgentID: agentID, LastSeenEventCounter: -1}
}

// Append adds item to the end of the history.
func (h *AgentHistory) Append(item HistoryItem) {
	h.Items = append(h.Items, item)
}
