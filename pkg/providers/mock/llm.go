// Package mock provides a scripted LLM adapter for tests and offline runs.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/toolargs"
)

// ToolCallSpec describes a tool call the mock requests. Arguments may be a
// map, JSON text or loose "key: value" text.
type ToolCallSpec struct {
	Name      string `mapstructure:"name"`
	Arguments any    `mapstructure:"arguments"`
}

type LLMConfig struct {
	ResponseText string         `mapstructure:"response_text"`
	StreamChunks []string       `mapstructure:"stream_chunks"`
	ToolCalls    []ToolCallSpec `mapstructure:"tool_calls"`
	FinalText    string         `mapstructure:"final_text"`
	Model        string         `mapstructure:"model"`
	// Script, when set, is played one entry per Stream call and takes
	// precedence over the fields above.
	Script [][]llm.Delta `mapstructure:"-"`
	// Err fails every Stream call.
	Err error `mapstructure:"-"`
}

type LLMAdapter struct {
	cfg LLMConfig

	mu       sync.Mutex
	calls    int
	requests []llm.Request
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	if cfg.FinalText == "" {
		cfg.FinalText = "mock final answer"
	}
	if cfg.Model == "" {
		cfg.Model = "mock-model"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock" }

func (a *LLMAdapter) DefaultModel() string { return a.cfg.Model }

func (a *LLMAdapter) Models(ctx context.Context) ([]string, error) {
	return []string{a.cfg.Model}, nil
}

// Requests returns copies of the requests seen so far.
func (a *LLMAdapter) Requests() []llm.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Request, len(a.requests))
	copy(out, a.requests)
	return out
}

func (a *LLMAdapter) Stream(ctx context.Context, req llm.Request) (<-chan llm.Delta, error) {
	a.mu.Lock()
	call := a.calls
	a.calls++
	a.requests = append(a.requests, req)
	a.mu.Unlock()

	if a.cfg.Err != nil {
		return nil, a.cfg.Err
	}
	deltas := a.plan(call, req)
	out := make(chan llm.Delta)
	go func() {
		defer close(out)
		for _, d := range deltas {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (a *LLMAdapter) plan(call int, req llm.Request) []llm.Delta {
	if len(a.cfg.Script) > 0 {
		if call < len(a.cfg.Script) {
			return a.cfg.Script[call]
		}
		return []llm.Delta{{Content: a.cfg.FinalText}}
	}
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == llm.RoleTool {
		return []llm.Delta{{Content: a.cfg.FinalText}}
	}
	if len(req.Tools) > 0 && len(a.cfg.ToolCalls) > 0 {
		return toolCallDeltas(call, a.cfg.ToolCalls)
	}
	chunks := a.cfg.StreamChunks
	if len(chunks) == 0 {
		chunks = []string{a.cfg.ResponseText}
	}
	out := make([]llm.Delta, len(chunks))
	for i, c := range chunks {
		out[i] = llm.Delta{Content: c}
	}
	return out
}

// toolCallDeltas splits each call across two deltas; only the first one
// carries the id, as streaming providers do.
func toolCallDeltas(call int, specs []ToolCallSpec) []llm.Delta {
	var out []llm.Delta
	for i, spec := range specs {
		args := toolargs.Coerce(spec.Arguments)
		raw, err := args.MarshalJSON()
		if err != nil {
			raw = []byte("{}")
		}
		half := len(raw) / 2
		out = append(out,
			llm.Delta{ToolCalls: []llm.ToolCallFragment{{
				ID:                fmt.Sprintf("mock_call_%d_%d", call, i),
				NameFragment:      spec.Name,
				ArgumentsFragment: string(raw[:half]),
			}}},
			llm.Delta{ToolCalls: []llm.ToolCallFragment{{ArgumentsFragment: string(raw[half:])}}},
		)
	}
	return out
}
