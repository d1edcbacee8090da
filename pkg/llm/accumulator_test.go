package llm

import (
	"fmt"
	"testing"

	"github.com/harunnryd/mcpchat/pkg/value"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen_%d", n)
	}
}

func TestAccumulatorReassemblesFragments(t *testing.T) {
	acc := NewAccumulator(seqIDs(), nil)
	acc.Ingest(Delta{Content: "Checking "})
	acc.Ingest(Delta{ToolCalls: []ToolCallFragment{{ID: "a", NameFragment: "get_current_"}}})
	acc.Ingest(Delta{ToolCalls: []ToolCallFragment{{NameFragment: "weather", ArgumentsFragment: `{"city":`}}})
	acc.Ingest(Delta{ToolCalls: []ToolCallFragment{{ArgumentsFragment: `"Rome"}`}}})
	acc.Ingest(Delta{Content: "now."})

	res := acc.Finalize()
	if res.Text != "Checking now." {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if len(res.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(res.ToolCalls))
	}
	call := res.ToolCalls[0]
	if call.ID != "a" || call.Name != "get_current_weather" {
		t.Fatalf("unexpected call %+v", call)
	}
	city, _ := call.Arguments.Get("city")
	if s, _ := city.AsString(); s != "Rome" {
		t.Fatalf("expected city Rome, got %v", city.Any())
	}
}

func TestAccumulatorKeepsFirstSeenOrder(t *testing.T) {
	acc := NewAccumulator(seqIDs(), nil)
	acc.Ingest(Delta{ToolCalls: []ToolCallFragment{
		{ID: "b", NameFragment: "second"},
		{ID: "a", NameFragment: "first"},
	}})
	acc.Ingest(Delta{ToolCalls: []ToolCallFragment{{ID: "b", ArgumentsFragment: "{}"}}})
	res := acc.Finalize()
	if len(res.ToolCalls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(res.ToolCalls))
	}
	if res.ToolCalls[0].ID != "b" || res.ToolCalls[1].ID != "a" {
		t.Fatalf("unexpected order: %s, %s", res.ToolCalls[0].ID, res.ToolCalls[1].ID)
	}
}

func TestAccumulatorSynthesizesMissingID(t *testing.T) {
	acc := NewAccumulator(seqIDs(), nil)
	acc.Ingest(Delta{ToolCalls: []ToolCallFragment{{}}})
	if acc.Pending() != 0 {
		t.Fatalf("empty fragment must not open a call")
	}
	acc.Ingest(Delta{ToolCalls: []ToolCallFragment{{NameFragment: "list_tables"}}})
	res := acc.Finalize()
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].ID != "gen_1" {
		t.Fatalf("expected synthesized id gen_1, got %+v", res.ToolCalls)
	}
}

func TestAccumulatorInvalidArgumentsBecomeEmpty(t *testing.T) {
	cases := []string{`{"city":`, `[1,2]`, `"text"`, ``}
	for _, raw := range cases {
		acc := NewAccumulator(seqIDs(), nil)
		acc.Ingest(Delta{ToolCalls: []ToolCallFragment{{ID: "x", NameFragment: "t", ArgumentsFragment: raw}}})
		res := acc.Finalize()
		if res.ToolCalls[0].Arguments == nil || res.ToolCalls[0].Arguments.Len() != 0 {
			t.Fatalf("args %q: expected empty map", raw)
		}
	}
}

func TestAccumulatorFinalizeIsIdempotent(t *testing.T) {
	acc := NewAccumulator(seqIDs(), nil)
	acc.Ingest(Delta{Content: "hi", ToolCalls: []ToolCallFragment{{ID: "x", NameFragment: "t", ArgumentsFragment: `{"a":1}`}}})
	first := acc.Finalize()
	first.ToolCalls[0].Arguments.Set("a", value.String("mutated"))
	second := acc.Finalize()
	if second.ToolCalls[0].ArgumentsJSON() != `{"a":1}` {
		t.Fatalf("finalize result was mutated through a previous copy: %s", second.ToolCalls[0].ArgumentsJSON())
	}
	if second.Text != "hi" {
		t.Fatalf("unexpected text %q", second.Text)
	}
}

func TestAccumulatorNoToolCalls(t *testing.T) {
	acc := NewAccumulator(nil, nil)
	acc.Ingest(Delta{Content: "plain answer"})
	res := acc.Finalize()
	if len(res.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls")
	}
	if res.Text != "plain answer" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}
