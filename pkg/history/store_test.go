package history

import (
	"testing"

	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/value"
)

func TestStoreStartsWithSystemMessage(t *testing.T) {
	s := New("be helpful")
	if s.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", s.Len())
	}
	if msgs := s.Snapshot(); msgs[0].Role != llm.RoleSystem || msgs[0].Content != "be helpful" {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	s.Append(llm.Message{Role: llm.RoleSystem, Content: "override"})
	if s.Len() != 1 || s.SystemPrompt() != "be helpful" {
		t.Fatalf("system messages must not be appended")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := New("sys")
	s.Append(llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{
		ID:        "a",
		Name:      "get_current_weather",
		Arguments: value.MapOf("city", "Rome"),
	}}})
	snap := s.Snapshot()
	snap[1].ToolCalls[0].Arguments.Set("city", value.String("Paris"))
	snap[1].ToolCalls[0].Name = "changed"
	snap[0].Content = "changed"

	again := s.Snapshot()
	if again[0].Content != "sys" || again[1].ToolCalls[0].Name != "get_current_weather" {
		t.Fatalf("snapshot mutation leaked into the store")
	}
	if v, _ := again[1].ToolCalls[0].Arguments.Get("city"); v.Text() != "Rome" {
		t.Fatalf("argument mutation leaked into the store: %s", v.Text())
	}
}

func TestAppendCopiesInput(t *testing.T) {
	s := New("sys")
	args := value.MapOf("sql_query", "select 1")
	s.Append(llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "x", Name: "run_sql_query", Arguments: args}}})
	args.Set("sql_query", value.String("drop table users"))
	if got := s.Last().ToolCalls[0].ArgumentsJSON(); got != `{"sql_query":"select 1"}` {
		t.Fatalf("append kept a reference to caller state: %s", got)
	}
}

func TestAppendOnlyAcrossTurns(t *testing.T) {
	s := New("sys")
	var prev []llm.Message
	for turn := 0; turn < 3; turn++ {
		s.Append(llm.Message{Role: llm.RoleUser, Content: "hi"})
		s.Append(llm.Message{Role: llm.RoleAssistant, Content: "hello"})
		cur := s.Snapshot()
		if len(cur) < len(prev) {
			t.Fatalf("turn %d: history shrank", turn)
		}
		for i := range prev {
			if cur[i].Role != prev[i].Role || cur[i].Content != prev[i].Content {
				t.Fatalf("turn %d: message %d changed", turn, i)
			}
		}
		prev = cur
	}
}

func TestResetKeepsOnlySystem(t *testing.T) {
	s := New("db1 prompt")
	s.Append(llm.Message{Role: llm.RoleUser, Content: "hi"})
	s.Reset("db2 prompt")
	msgs := s.Snapshot()
	if len(msgs) != 1 || msgs[0].Role != llm.RoleSystem || msgs[0].Content != "db2 prompt" {
		t.Fatalf("unexpected history after reset: %+v", msgs)
	}
}
