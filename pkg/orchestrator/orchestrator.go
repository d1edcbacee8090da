// Package orchestrator drives one chat turn: the initial model call, tool
// execution, and the final answer, emitted as a sequence of events.
package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/mcpchat/pkg/errorsx"
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/metrics"
	"github.com/harunnryd/mcpchat/pkg/redact"
	"github.com/harunnryd/mcpchat/pkg/resilience"
	"github.com/harunnryd/mcpchat/pkg/session"
	"github.com/harunnryd/mcpchat/pkg/toolargs"
	"github.com/harunnryd/mcpchat/pkg/toolfmt"
	"github.com/harunnryd/mcpchat/pkg/value"
)

// Request is one user message and the options that came with it.
type Request struct {
	Text       string
	UseTools   bool
	Provider   string
	Model      string
	Connection string
}

type Config struct {
	Providers *llm.Registry
	// Tools may be nil, in which case every turn is answered without tools.
	Tools       llm.ToolProvider
	Temperature float64
	Observer    metrics.Observer
	Logger      *slog.Logger
	// NewID synthesizes tool-call ids; nil uses random UUIDs.
	NewID func() string
}

type Orchestrator struct {
	providers   *llm.Registry
	tools       llm.ToolProvider
	temperature float64
	obs         metrics.Observer
	logger      *slog.Logger
	newID       func() string
}

func New(cfg Config) *Orchestrator {
	if cfg.Providers == nil {
		cfg.Providers = llm.NewRegistry()
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Orchestrator{
		providers:   cfg.Providers,
		tools:       cfg.Tools,
		temperature: cfg.Temperature,
		obs:         cfg.Observer,
		logger:      cfg.Logger,
		newID:       cfg.NewID,
	}
}

// HandleTurn runs one turn on s. Turns on the same session run one at a
// time in the order they acquire it. If the consumer stops ranging, the
// turn stops at its next emission and keeps whatever history it already
// appended.
func (o *Orchestrator) HandleTurn(ctx context.Context, s *session.Session, req Request) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		end := s.BeginTurn()
		defer end()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		t := &turnRun{
			o:             o,
			s:             s,
			req:           req,
			yield:         yield,
			correlationID: uuid.NewString(),
			started:       time.Now(),
		}
		t.logger = o.logger.With("session_id", s.ID, "correlation_id", t.correlationID)
		t.run(ctx)
	}
}

type turnRun struct {
	o             *Orchestrator
	s             *session.Session
	req           Request
	yield         func(Event) bool
	logger        *slog.Logger
	correlationID string
	started       time.Time

	adapter   llm.LLMAdapter
	model     string
	stopped   bool
	toolCalls int
	outcome   string
}

// emit forwards ev and reports whether the consumer is still listening.
func (t *turnRun) emit(ev Event) bool {
	if t.stopped {
		return false
	}
	if !t.yield(ev) {
		t.stopped = true
		t.logger.Info("turn_abandoned", "event_type", string(ev.Type))
	}
	return !t.stopped
}

func (t *turnRun) run(ctx context.Context) {
	turns := t.s.Turns()
	t.transition(turns.OnUserMessage())
	t.outcome = "abandoned"
	defer func() {
		turns.OnTurnEnd(t.outcome)
		t.record(metrics.EventTurnEnd, time.Since(t.started).Seconds()*1000, map[string]any{
			"outcome":    t.outcome,
			"tool_calls": t.toolCalls,
		})
		t.logger.Info("turn_finished", "outcome", t.outcome, "tool_calls", t.toolCalls, "duration_ms", time.Since(t.started).Milliseconds())
	}()

	if t.s.SetConnection(t.req.Connection) {
		t.logger.Info("history_reset", "db_connection", t.req.Connection)
		t.record(metrics.EventHistoryReset, 0, nil)
	}
	conn := t.s.Connection()
	t.s.History().Append(llm.Message{Role: llm.RoleUser, Content: t.req.Text})
	t.logger.Info("turn_started", "text", redact.Text(t.req.Text), "provider", t.req.Provider, "use_mcp", t.req.UseTools)
	t.record(metrics.EventTurnStart, 0, nil)

	if t.s.Debug {
		msg := fmt.Sprintf("[%s] provider=%s, model=%s, use_mcp=%t, db_connection=%s",
			t.correlationID, t.req.Provider, t.req.Model, t.req.UseTools, conn)
		if !t.emit(Debug(msg)) {
			return
		}
	}

	adapter, err := t.o.providers.Get(t.req.Provider)
	if err != nil {
		t.logger.Error("llm_provider_error", "provider", t.req.Provider, "reason_code", string(errorsx.Reason(err)), "error", err)
		t.outcome = "provider_error"
		t.emit(Error(err.Error()))
		return
	}
	t.adapter = adapter
	t.model = t.req.Model
	if t.model == "" {
		if dm, ok := llm.Unwrap(adapter).(llm.DefaultModeler); ok {
			t.model = dm.DefaultModel()
		}
	}

	var tools []llm.Tool
	if t.req.UseTools {
		tools = llm.ScopeTools(t.catalog(ctx), conn)
	}
	if len(tools) == 0 {
		t.simpleStream(ctx)
		return
	}
	t.toolStream(ctx, tools, conn)
}

// catalog returns the session's tool list, fetching it once per session.
func (t *turnRun) catalog(ctx context.Context) []llm.Tool {
	if tools := t.s.Tools(); tools != nil {
		return tools
	}
	if t.o.tools == nil {
		return nil
	}
	tools, err := t.o.tools.ListTools(ctx)
	if err != nil {
		t.logger.Warn("tool_catalog_unavailable", "reason_code", string(errorsx.Reason(err)), "error", err)
		return nil
	}
	t.s.SetTools(tools)
	return tools
}

// simpleStream answers without offering any tools.
func (t *turnRun) simpleStream(ctx context.Context) {
	res, ok := t.stream(ctx, llm.Request{
		Model:       t.model,
		Messages:    t.s.History().Snapshot(),
		Temperature: t.o.temperature,
	}, "initial")
	if !ok {
		return
	}
	t.transition(t.s.Turns().OnDirectAnswer())
	t.s.History().Append(llm.Message{Role: llm.RoleAssistant, Content: res.Text})
	t.outcome = "direct_answer"
}

func (t *turnRun) toolStream(ctx context.Context, tools []llm.Tool, conn string) {
	choice := llm.ToolChoiceAuto
	if t.s.Forced {
		choice = llm.ToolChoiceRequired
	}
	res, ok := t.stream(ctx, llm.Request{
		Model:       t.model,
		Messages:    t.s.History().Snapshot(),
		Tools:       tools,
		ToolChoice:  choice,
		Temperature: t.o.temperature,
	}, "initial")
	if !ok {
		return
	}

	if len(res.ToolCalls) == 0 {
		t.transition(t.s.Turns().OnDirectAnswer())
		t.s.History().Append(llm.Message{Role: llm.RoleAssistant, Content: res.Text})
		t.outcome = "direct_answer"
		if t.s.Debug {
			t.emit(Debug(fmt.Sprintf("[%s+MCP] No tool calls. Direct answer.", t.adapter.Name())))
		}
		return
	}

	t.transition(t.s.Turns().OnToolCalls(len(res.ToolCalls)))
	t.s.History().Append(llm.Message{Role: llm.RoleAssistant, Content: res.Text, ToolCalls: res.ToolCalls})
	// Resolve against the full catalog so a call to a tool hidden by
	// scoping still gets its connection injected and checked.
	index := llm.IndexTools(t.catalog(ctx))
	for _, call := range res.ToolCalls {
		if !t.execute(ctx, call, index, conn) {
			return
		}
	}

	t.transition(t.s.Turns().OnFinalResponse())
	final, ok := t.stream(ctx, llm.Request{
		Model:       t.model,
		Messages:    t.s.History().Snapshot(),
		ToolChoice:  llm.ToolChoiceNone,
		Temperature: 0,
	}, "final")
	if !ok {
		return
	}
	t.s.History().Append(llm.Message{Role: llm.RoleAssistant, Content: final.Text})
	t.outcome = "tool_answer"
}

// execute resolves one tool call into a tool-role history message. It
// reports false once the consumer has gone away.
func (t *turnRun) execute(ctx context.Context, call llm.ToolCall, index map[string]llm.Tool, conn string) bool {
	t.toolCalls++
	tool, ok := index[call.Name]
	if !ok {
		tool = llm.Tool{Name: call.Name}
	}
	args := toolargs.InjectConnection(tool, call.Arguments, conn)

	if err := toolargs.Validate(tool, args); err != nil {
		msg := err.Error()
		t.logger.Warn("tool_args_invalid", "tool", call.Name, "reason_code", string(errorsx.Reason(err)), "error", msg)
		t.appendToolResult(call.ID, errorPayload(msg))
		t.recordTool(metrics.EventToolResult, call.Name, "invalid_args")
		return t.emit(Error(msg))
	}

	t.logger.Info("tool_invoke", "tool", call.Name, "arguments", redact.Text(string(mustJSON(args))))
	t.recordTool(metrics.EventToolCall, call.Name, "")
	if !t.emit(ToolCall(call.Name, args)) {
		return false
	}

	if t.o.tools == nil {
		t.appendToolResult(call.ID, fmt.Sprintf("Error calling tool '%s': no tool provider configured", call.Name))
		t.recordTool(metrics.EventToolResult, call.Name, "error")
		return true
	}
	result, err := t.o.tools.Invoke(ctx, call.Name, args)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonToolInvoke)
		t.logger.Error("tool_invoke_error", "tool", call.Name, "reason_code", string(errorsx.Reason(err)), "error", err)
		t.appendToolResult(call.ID, fmt.Sprintf("Error calling tool '%s': %v", call.Name, err))
		t.recordTool(metrics.EventToolResult, call.Name, "error")
		return true
	}
	if call.Name == llm.ListConnectionsTool && conn != "" {
		result = value.Object(value.MapOf("result", value.List(value.String(conn))))
	}
	t.appendToolResult(call.ID, toolfmt.Format(call.Name, result))
	t.recordTool(metrics.EventToolResult, call.Name, "ok")
	return true
}

func (t *turnRun) transition(err error) {
	if err != nil {
		t.logger.Warn("turn_state_error", "error", err)
	}
}

func (t *turnRun) appendToolResult(callID, content string) {
	t.s.History().Append(llm.Message{Role: llm.RoleTool, ToolCallID: callID, Content: content})
}

// stream runs one model call, forwarding text fragments as they arrive.
func (t *turnRun) stream(ctx context.Context, req llm.Request, phase string) (llm.AccumulatedResult, bool) {
	ch, err := t.adapter.Stream(ctx, req)
	if err != nil {
		t.llmFailed(err, phase)
		return llm.AccumulatedResult{}, false
	}
	acc := llm.NewAccumulator(t.o.newID, t.logger)
	first := true
	for d := range ch {
		if d.Err != nil {
			t.llmFailed(d.Err, phase)
			return llm.AccumulatedResult{}, false
		}
		acc.Ingest(d)
		if d.Content == "" {
			continue
		}
		if first {
			first = false
			t.record(metrics.EventLLMFirst, time.Since(t.started).Seconds()*1000, map[string]any{"phase": phase})
		}
		if !t.emit(Response(d.Content)) {
			return llm.AccumulatedResult{}, false
		}
	}
	if err := ctx.Err(); err != nil {
		t.llmFailed(err, phase)
		return llm.AccumulatedResult{}, false
	}
	return acc.Finalize(), true
}

func (t *turnRun) llmFailed(err error, phase string) {
	reason := errorsx.ReasonLLMStream
	if resilience.IsRateLimit(err) {
		reason = errorsx.ReasonLLMRateLimit
	}
	err = errorsx.Wrap(err, reason)
	t.logger.Error("llm_stream_error", "phase", phase, "provider", t.adapter.Name(), "model", t.model,
		"reason_code", string(errorsx.Reason(err)), "error", err)
	t.record(metrics.EventLLMError, 0, map[string]any{"phase": phase, "reason_code": string(errorsx.Reason(err))})
	t.outcome = "llm_error"
	t.emit(Error(err.Error()))
}

func (t *turnRun) record(name string, v float64, fields map[string]any) {
	tags := map[string]string{
		"session_id":     t.s.ID,
		"correlation_id": t.correlationID,
		"component":      "orchestrator",
	}
	if t.adapter != nil {
		tags["provider"] = t.adapter.Name()
	}
	t.o.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Value:  v,
		Tags:   tags,
		Fields: fields,
	})
}

func (t *turnRun) recordTool(name, tool, status string) {
	fields := map[string]any{"tool": tool}
	if status != "" {
		fields["status"] = status
	}
	t.record(name, 0, fields)
}

func errorPayload(msg string) string {
	return string(mustJSON(value.MapOf("error", msg)))
}

func mustJSON(m *value.Map) []byte {
	b, err := m.MarshalJSON()
	if err != nil {
		return []byte("{}")
	}
	return b
}
