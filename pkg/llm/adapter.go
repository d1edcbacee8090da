package llm

import (
	"context"

	"github.com/harunnryd/mcpchat/pkg/value"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a fully reassembled tool invocation request.
type ToolCall struct {
	ID        string
	Name      string
	Arguments *value.Map
}

// ArgumentsJSON renders the arguments as the text form providers replay in history.
func (c ToolCall) ArgumentsJSON() string {
	if c.Arguments == nil {
		return "{}"
	}
	b, err := c.Arguments.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (c ToolCall) Clone() ToolCall {
	out := c
	if c.Arguments != nil {
		out.Arguments = c.Arguments.Clone()
	}
	return out
}

// Message is one entry of the conversation log.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, call := range m.ToolCalls {
			out.ToolCalls[i] = call.Clone()
		}
	}
	return out
}

type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// ParseToolChoice maps config values onto a ToolChoice, defaulting to auto.
func ParseToolChoice(v string) ToolChoice {
	switch v {
	case "required", "forced", "force":
		return ToolChoiceRequired
	case "none", "disabled":
		return ToolChoiceNone
	default:
		return ToolChoiceAuto
	}
}

// Request is one streaming call to a provider.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	ToolChoice  ToolChoice
	Temperature float64
}

// ToolCallFragment is one piece of a tool call as it arrives on the wire.
// Any field may be empty.
type ToolCallFragment struct {
	ID                string
	NameFragment      string
	ArgumentsFragment string
}

// Delta is the provider-neutral unit of a streamed response. Err is set on
// the last delta of a stream that failed midway.
type Delta struct {
	Content   string
	ToolCalls []ToolCallFragment
	Err       error
}

// LLMAdapter streams normalized deltas from one provider.
// The returned channel is closed when the stream ends.
type LLMAdapter interface {
	Name() string
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
}

// ModelLister is implemented by adapters that can enumerate models.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// DefaultModeler is implemented by adapters configured with a default model.
type DefaultModeler interface {
	DefaultModel() string
}
