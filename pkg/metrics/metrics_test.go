package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestJSONLObserverWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	obs := NewJSONLObserver(&buf)
	obs.RecordEvent(MetricsEvent{Name: EventToolCall, Time: time.Unix(0, 0), Tags: map[string]string{"tool": "get_current_weather"}})
	obs.RecordEvent(MetricsEvent{Name: EventTurnEnd, Value: 12, Fields: map[string]any{"tool_calls": 1}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line is not json: %v", err)
	}
	if first["name"] != EventToolCall || first["tool"] != "get_current_weather" {
		t.Fatalf("unexpected record %v", first)
	}
	var second map[string]any
	_ = json.Unmarshal([]byte(lines[1]), &second)
	fields, _ := second["fields"].(map[string]any)
	if fields["tool_calls"] != float64(1) {
		t.Fatalf("expected nested fields, got %v", second)
	}
}

func TestOpenJSONLObserverCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metrics.jsonl")
	obs, err := OpenJSONLObserver(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	obs.RecordEvent(MetricsEvent{Name: EventTurnStart})
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), EventTurnStart) {
		t.Fatalf("expected event in file, got %q", data)
	}
}

func TestAsyncObserverDeliversBeforeClose(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 8)
	for i := 0; i < 5; i++ {
		async.RecordEvent(MetricsEvent{Name: EventToolResult})
	}
	async.Close()
	async.RecordEvent(MetricsEvent{Name: EventToolResult})
	if got := len(mem.Named(EventToolResult)); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewMemoryObserver(), NewMemoryObserver()
	Multi{a, nil, b}.RecordEvent(MetricsEvent{Name: EventLLMError})
	if len(a.Named(EventLLMError)) != 1 || len(b.Named(EventLLMError)) != 1 {
		t.Fatalf("expected both observers to receive the event")
	}
}
