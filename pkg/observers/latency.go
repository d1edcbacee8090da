package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/mcpchat/pkg/metrics"
)

// LatencyObserver logs one turn_latency line per finished turn, keyed by
// correlation id.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	sessionID  string
	provider   string
	start      time.Time
	firstToken time.Time
	toolCalls  int
	toolErrors int
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Tags["correlation_id"]
	if id == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.traces[id]
	if t == nil {
		t = &trace{sessionID: ev.Tags["session_id"]}
		o.traces[id] = t
	}
	if p := ev.Tags["provider"]; p != "" {
		t.provider = p
	}
	switch ev.Name {
	case metrics.EventTurnStart:
		if t.start.IsZero() {
			t.start = ev.Time
		}
	case metrics.EventLLMFirst:
		if t.firstToken.IsZero() {
			t.firstToken = ev.Time
		}
	case metrics.EventToolCall:
		t.toolCalls++
	case metrics.EventToolResult:
		if status, _ := ev.Fields["status"].(string); status != "" && status != "ok" {
			t.toolErrors++
		}
	case metrics.EventTurnEnd:
		outcome, _ := ev.Fields["outcome"].(string)
		o.log.Info("turn_latency",
			"session_id", t.sessionID,
			"correlation_id", id,
			"provider", t.provider,
			"outcome", outcome,
			"first_token_ms", durationMs(t.start, t.firstToken),
			"total_ms", durationMs(t.start, ev.Time),
			"tool_calls", t.toolCalls,
			"tool_errors", t.toolErrors,
		)
		delete(o.traces, id)
	}
}

// Pending reports turns that started but have not ended.
func (o *LatencyObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.traces)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
