package metrics

import "time"

const (
	EventTurnStart    = "turn_start"
	EventTurnEnd      = "turn_end"
	EventToolCall     = "tool_call"
	EventToolResult   = "tool_result"
	EventLLMError     = "llm_error"
	EventLLMFirst     = "llm_first_token"
	EventHistoryReset = "history_reset"

	EventRateLimit     = "rate_limit"
	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"

	EventWSConnect    = "ws_connect"
	EventWSDisconnect = "ws_disconnect"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Multi fans events out to several observers.
type Multi []Observer

func (m Multi) RecordEvent(ev MetricsEvent) {
	for _, o := range m {
		if o != nil {
			o.RecordEvent(ev)
		}
	}
}
