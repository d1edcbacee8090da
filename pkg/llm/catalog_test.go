package llm

import (
	"encoding/json"
	"testing"

	"github.com/harunnryd/mcpchat/pkg/errorsx"
	"github.com/harunnryd/mcpchat/pkg/value"
)

func mustSchema(t *testing.T, raw string) value.Value {
	t.Helper()
	v, err := value.ParseString(raw)
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return v
}

func TestFunctionToolsShape(t *testing.T) {
	tools := []Tool{
		{Name: "get_current_weather", Description: "Weather", Schema: mustSchema(t, `{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`)},
		{Name: "ping"},
		{Name: ""},
	}
	out := FunctionTools(tools)
	if len(out) != 2 {
		t.Fatalf("expected 2 function tools, got %d", len(out))
	}
	b, err := json.Marshal(out[1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"function","function":{"name":"ping","parameters":{"type":"object","properties":{}}}}`
	if string(b) != want {
		t.Fatalf("unexpected shape:\n got %s\nwant %s", b, want)
	}
	b, _ = json.Marshal(out[0])
	want = `{"type":"function","function":{"name":"get_current_weather","description":"Weather","parameters":{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}}}`
	if string(b) != want {
		t.Fatalf("unexpected shape:\n got %s\nwant %s", b, want)
	}
}

func TestScopeToolsWithConnection(t *testing.T) {
	connSchema := mustSchema(t, `{"type":"object","properties":{"db_connection_name":{"type":"string"}}}`)
	tools := []Tool{
		{Name: "run_sql_query", Schema: connSchema},
		{Name: "drop_everything", Schema: connSchema},
		{Name: "get_current_weather", Schema: mustSchema(t, `{"type":"object","properties":{"city":{}}}`)},
	}
	if got := ScopeTools(tools, ""); len(got) != 3 {
		t.Fatalf("expected all tools without a connection, got %d", len(got))
	}
	got := ScopeTools(tools, "sales")
	names := map[string]bool{}
	for _, tool := range got {
		names[tool.Name] = true
	}
	if !names["run_sql_query"] || !names["get_current_weather"] || names["drop_everything"] {
		t.Fatalf("unexpected scoped tools: %v", names)
	}
}

func TestToolSchemaHelpers(t *testing.T) {
	tool := Tool{Name: "find_documents", Schema: mustSchema(t, `{"properties":{"collection":{},"filter":{}},"required":["collection"]}`)}
	if !tool.AcceptsParam("filter") || tool.AcceptsParam("db_connection_name") {
		t.Fatalf("AcceptsParam mismatch")
	}
	if req := tool.Required(); len(req) != 1 || req[0] != "collection" {
		t.Fatalf("unexpected required %v", req)
	}
	if (Tool{}).AcceptsParam("x") {
		t.Fatalf("schema-less tool accepts nothing")
	}
}

func TestParseToolChoice(t *testing.T) {
	cases := map[string]ToolChoice{
		"":         ToolChoiceAuto,
		"auto":     ToolChoiceAuto,
		"required": ToolChoiceRequired,
		"forced":   ToolChoiceRequired,
		"none":     ToolChoiceNone,
	}
	for in, want := range cases {
		if got := ParseToolChoice(in); got != want {
			t.Fatalf("ParseToolChoice(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry("openai", "ollama")
	r.Register("mock", &scriptedAdapter{name: "mock"})

	if _, err := r.Get("MOCK"); err != nil {
		t.Fatalf("expected case-insensitive lookup, got %v", err)
	}
	_, err := r.Get("openai")
	if err == nil || err.Error() != "OpenAI client not configured." {
		t.Fatalf("unexpected unconfigured error %v", err)
	}
	if errorsx.Reason(err) != errorsx.ReasonProviderUnconfigured {
		t.Fatalf("unexpected reason %s", errorsx.Reason(err))
	}
	_, err = r.Get("claude")
	if err == nil || err.Error() != "Unknown LLM provider: claude" {
		t.Fatalf("unexpected unknown error %v", err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "mock" {
		t.Fatalf("unexpected names %v", names)
	}
}
