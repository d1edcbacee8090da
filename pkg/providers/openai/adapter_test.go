package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/resilience"
	"github.com/harunnryd/mcpchat/pkg/value"
)

func sseServer(t *testing.T, chunks []string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func collect(t *testing.T, ch <-chan llm.Delta) llm.AccumulatedResult {
	t.Helper()
	acc := llm.NewAccumulator(nil, nil)
	for d := range ch {
		if d.Err != nil {
			t.Fatalf("stream error: %v", d.Err)
		}
		acc.Ingest(d)
	}
	return acc.Finalize()
}

func TestStreamReassemblesToolCalls(t *testing.T) {
	chunks := []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_current_weather","arguments":""}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"list_tables","arguments":"{}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Rome\"}"}}]}}]}`,
	}
	var body map[string]any
	srv := sseServer(t, chunks, &body)
	defer srv.Close()

	a := NewAdapterWithSettings(Settings{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	tools := []llm.Tool{{Name: "get_current_weather"}}
	ch, err := a.Stream(context.Background(), llm.Request{
		Messages:   []llm.Message{{Role: llm.RoleUser, Content: "weather in Rome"}},
		Tools:      tools,
		ToolChoice: llm.ToolChoiceRequired,
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	res := collect(t, ch)
	if len(res.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %+v", res.ToolCalls)
	}
	if res.ToolCalls[0].ID != "call_a" || res.ToolCalls[0].ArgumentsJSON() != `{"city":"Rome"}` {
		t.Fatalf("index-only fragments must attach to their call: %+v", res.ToolCalls[0])
	}
	if body["model"] != "gpt-test" || body["tool_choice"] != "required" || body["stream"] != true {
		t.Fatalf("unexpected request body %v", body)
	}
	if tools, _ := body["tools"].([]any); len(tools) != 1 {
		t.Fatalf("expected tools in request, got %v", body["tools"])
	}
}

func TestStreamText(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"role":"assistant","content":"It's "}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"18°C."}}]}`,
	}, nil)
	defer srv.Close()
	a := NewAdapterWithSettings(Settings{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	ch, err := a.Stream(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if res := collect(t, ch); res.Text != "It's 18°C." {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestRateLimitIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()
	a := NewAdapterWithSettings(Settings{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	_, err := a.Stream(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestToMessagesReplaysToolCalls(t *testing.T) {
	msgs := toMessages([]llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "a", Name: "get_current_weather", Arguments: value.MapOf("city", "Rome")}}},
		{Role: llm.RoleTool, ToolCallID: "a", Content: "18°C"},
	})
	if msgs[0].ToolCalls[0].Function.Arguments != `{"city":"Rome"}` {
		t.Fatalf("arguments must be replayed as text, got %q", msgs[0].ToolCalls[0].Function.Arguments)
	}
	if msgs[1].Role != "tool" || msgs[1].ToolCallID != "a" {
		t.Fatalf("unexpected tool message %+v", msgs[1])
	}
	if msgs[0].Role != "assistant" {
		t.Fatalf("unexpected role %s", msgs[0].Role)
	}
}
