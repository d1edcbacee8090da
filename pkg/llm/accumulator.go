package llm

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/harunnryd/mcpchat/pkg/value"
)

// Accumulator reassembles streamed deltas into text and complete tool calls.
// It is not safe for concurrent use.
type Accumulator struct {
	text    strings.Builder
	order   []string
	pending map[string]*pendingCall
	newID   func() string
	logger  *slog.Logger
	result  *AccumulatedResult
}

type pendingCall struct {
	name strings.Builder
	args strings.Builder
}

// AccumulatedResult is the outcome of one streamed response.
type AccumulatedResult struct {
	Text      string
	ToolCalls []ToolCall
}

// NewAccumulator builds an accumulator. newID synthesizes ids for fragments
// that carry none when no call is open; nil uses random UUIDs.
func NewAccumulator(newID func() string, logger *slog.Logger) *Accumulator {
	if newID == nil {
		newID = uuid.NewString
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{
		pending: make(map[string]*pendingCall),
		newID:   newID,
		logger:  logger,
	}
}

// Ingest folds one delta into the accumulator state.
func (a *Accumulator) Ingest(d Delta) {
	if d.Content == "" && len(d.ToolCalls) == 0 {
		return
	}
	a.result = nil
	a.text.WriteString(d.Content)
	for _, frag := range d.ToolCalls {
		id := strings.TrimSpace(frag.ID)
		if id == "" {
			id = a.lastID()
		}
		if id == "" {
			if frag.NameFragment == "" && frag.ArgumentsFragment == "" {
				continue
			}
			id = a.newID()
		}
		call, ok := a.pending[id]
		if !ok {
			call = &pendingCall{}
			a.pending[id] = call
			a.order = append(a.order, id)
		}
		call.name.WriteString(frag.NameFragment)
		call.args.WriteString(frag.ArgumentsFragment)
	}
}

func (a *Accumulator) lastID() string {
	if len(a.order) == 0 {
		return ""
	}
	return a.order[len(a.order)-1]
}

// Pending reports how many tool calls have been opened so far.
func (a *Accumulator) Pending() int { return len(a.order) }

// Finalize returns the accumulated text and tool calls in the order their ids
// first appeared. Argument text that is not a JSON object becomes an empty map.
// Repeated calls without further Ingest return the same result.
func (a *Accumulator) Finalize() AccumulatedResult {
	if a.result != nil {
		return cloneResult(*a.result)
	}
	res := AccumulatedResult{Text: a.text.String()}
	for _, id := range a.order {
		call := a.pending[id]
		name := call.name.String()
		raw := call.args.String()
		res.ToolCalls = append(res.ToolCalls, ToolCall{
			ID:        id,
			Name:      name,
			Arguments: a.parseArguments(name, raw),
		})
	}
	a.result = &res
	return cloneResult(res)
}

func (a *Accumulator) parseArguments(name, raw string) *value.Map {
	if strings.TrimSpace(raw) == "" {
		return value.NewMap()
	}
	v, err := value.ParseString(raw)
	if err != nil {
		a.logger.Warn("tool_args_parse_failed", "tool", name, "arguments", raw, "error", err)
		return value.NewMap()
	}
	m, ok := v.AsMap()
	if !ok {
		a.logger.Warn("tool_args_not_object", "tool", name, "kind", v.Kind().String())
		return value.NewMap()
	}
	return m
}

func cloneResult(in AccumulatedResult) AccumulatedResult {
	out := AccumulatedResult{Text: in.Text}
	if in.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(in.ToolCalls))
		for i, call := range in.ToolCalls {
			out.ToolCalls[i] = call.Clone()
		}
	}
	return out
}
