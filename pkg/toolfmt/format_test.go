package toolfmt

import (
	"strings"
	"testing"

	"github.com/harunnryd/mcpchat/pkg/value"
)

func parse(t *testing.T, raw string) value.Value {
	t.Helper()
	v, err := value.ParseString(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return v
}

func TestFormat(t *testing.T) {
	cases := []struct {
		name   string
		tool   string
		result string
		want   string
	}{
		{
			name:   "empty result list",
			tool:   "list_tables",
			result: `{"result":[]}`,
			want:   "The tool call returned an empty list of results for list_tables.",
		},
		{
			name:   "records as table",
			tool:   "run_sql_query",
			result: `{"result":[{"id":1,"name":"Ada"},{"id":2}]}`,
			want:   "The tool call returned the following data:\n| id | name |\n|--|--|\n| 1 | Ada |\n| 2 |  |",
		},
		{
			name:   "scalars as bullets",
			tool:   "list_database_connections",
			result: `{"result":["sales","hr"]}`,
			want:   "The tool call returned the following list of items:\n- sales\n- hr",
		},
		{
			name:   "other shapes pretty printed",
			tool:   "get_current_weather",
			result: `{"temperature":"18°C","humidity":40}`,
			want:   "The tool call returned the following information:\n{\n  \"temperature\": \"18°C\",\n  \"humidity\": 40\n}",
		},
		{
			name:   "file listing",
			tool:   "list_files",
			result: `{"files":["a.txt","b.txt"]}`,
			want:   "The `list_files` tool returned the following files:\n- a.txt\n- b.txt",
		},
		{
			name:   "file listing without files",
			tool:   "list_files",
			result: `{"status":"ok"}`,
			want:   "The list of files was retrieved successfully.",
		},
		{
			name:   "count wrapped in object",
			tool:   "count_documents",
			result: `{"count":42,"collection":"orders"}`,
			want:   "The `count_documents` tool returned a count of 42 documents.",
		},
		{
			name:   "count missing",
			tool:   "count_documents",
			result: `{}`,
			want:   "The count operation was successful, but no count value was returned.",
		},
	}
	for _, tc := range cases {
		got := Format(tc.tool, parse(t, tc.result))
		if got != tc.want {
			t.Fatalf("%s:\n got %q\nwant %q", tc.name, got, tc.want)
		}
	}
}

func TestFormatEmptyListNeverBlank(t *testing.T) {
	for _, tool := range []string{"a", "run_sql_query", "find_documents", "list_files", "count_documents"} {
		got := Format(tool, parse(t, `{"result":[]}`))
		if strings.TrimSpace(got) == "" || !strings.Contains(got, "empty list") {
			t.Fatalf("tool %s: expected explicit empty statement, got %q", tool, got)
		}
	}
}

func TestFormatSingleColumnSeparator(t *testing.T) {
	got := Format("t", parse(t, `{"result":[{"only":"x"}]}`))
	if !strings.Contains(got, "\n|--|\n") {
		t.Fatalf("unexpected separator in %q", got)
	}
}

func TestFormatMixedListFallsBackToItems(t *testing.T) {
	got := Format("t", parse(t, `{"result":[{"id":1},"loose",7]}`))
	if strings.Contains(got, "|") {
		t.Fatalf("mixed rows should not render as a table: %q", got)
	}
	for _, want := range []string{"list of items", "- loose", "- 7"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}
