package orchestrator

import (
	"encoding/json"

	"github.com/harunnryd/mcpchat/pkg/value"
)

type EventType string

const (
	EventResponse EventType = "response"
	EventToolCall EventType = "tool-call"
	EventError    EventType = "error"
	EventDebug    EventType = "debug"
)

// Event is one item of a turn's output sequence.
type Event struct {
	Type EventType
	// Text carries the response fragment, or the error/debug message.
	Text string
	// Tool and Arguments are set on tool-call events.
	Tool      string
	Arguments *value.Map
}

func Response(text string) Event { return Event{Type: EventResponse, Text: text} }

func Error(msg string) Event { return Event{Type: EventError, Text: msg} }

func Debug(msg string) Event { return Event{Type: EventDebug, Text: msg} }

func ToolCall(name string, args *value.Map) Event {
	return Event{Type: EventToolCall, Tool: name, Arguments: args}
}

type toolCallMessage struct {
	Name      string     `json:"name"`
	Arguments *value.Map `json:"arguments"`
}

// MarshalJSON renders the client frame: {"type": ..., "message": ...} where
// message is the text, or {name, arguments} for tool-call events.
func (e Event) MarshalJSON() ([]byte, error) {
	frame := struct {
		Type    EventType `json:"type"`
		Message any       `json:"message"`
	}{Type: e.Type, Message: e.Text}
	if e.Type == EventToolCall {
		args := e.Arguments
		if args == nil {
			args = value.NewMap()
		}
		frame.Message = toolCallMessage{Name: e.Tool, Arguments: args}
	}
	return json.Marshal(frame)
}
