package observers

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/mcpchat/pkg/metrics"
)

func TestLoggerObserverDebugOnly(t *testing.T) {
	var buf bytes.Buffer
	info := NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	info.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTurnStart, Time: time.Now()})
	if buf.Len() != 0 {
		t.Fatalf("expected nothing at info level, got %q", buf.String())
	}

	debug := NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	debug.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventToolCall,
		Time:   time.Now(),
		Tags:   map[string]string{"session_id": "s-1", "component": "orchestrator"},
		Fields: map[string]any{"tool": "get_weather"},
	})
	out := buf.String()
	for _, want := range []string{"msg=metrics_event", "name=tool_call", "session_id=s-1", "tool=get_weather"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Index(out, "component=") > strings.Index(out, "session_id=") {
		t.Fatalf("expected sorted tags: %q", out)
	}
}
