// Package toolfmt renders raw tool results into the text the model reads back.
package toolfmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/mcpchat/pkg/value"
)

// Format summarizes a tool result. Tool-specific renderings win over the
// generic shapes below them.
func Format(tool string, result value.Value) string {
	items, isList := resultList(result)
	if isList && len(items) == 0 {
		return fmt.Sprintf("The tool call returned an empty list of results for %s.", tool)
	}
	switch tool {
	case "list_files":
		return formatFiles(result)
	case "count_documents":
		return formatCount(result)
	}

	if !isList {
		return "The tool call returned the following information:\n" + pretty(result)
	}
	if allMaps(items) {
		first, _ := items[0].AsMap()
		return "The tool call returned the following data:\n" + table(first.Keys(), items)
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item.Text()
	}
	return "The tool call returned the following list of items:\n" + strings.Join(lines, "\n")
}

func allMaps(items []value.Value) bool {
	for _, item := range items {
		if _, ok := item.AsMap(); !ok {
			return false
		}
	}
	return true
}

// resultList unwraps {"result": [...]}; a bare list is treated the same way.
func resultList(v value.Value) ([]value.Value, bool) {
	if items, ok := v.AsList(); ok {
		return items, true
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, false
	}
	inner, ok := m.Get("result")
	if !ok {
		return nil, false
	}
	return inner.AsList()
}

func formatFiles(v value.Value) string {
	if m, ok := v.AsMap(); ok {
		if files, ok := m.Get("files"); ok {
			if list, ok := files.AsList(); ok {
				lines := make([]string, len(list))
				for i, f := range list {
					lines[i] = "- " + f.Text()
				}
				return "The `list_files` tool returned the following files:\n" + strings.Join(lines, "\n")
			}
		}
	}
	return "The list of files was retrieved successfully."
}

func formatCount(v value.Value) string {
	if m, ok := v.AsMap(); ok {
		if count, ok := m.Get("count"); ok {
			return fmt.Sprintf("The `count_documents` tool returned a count of %s documents.", count.Text())
		}
	}
	return "The count operation was successful, but no count value was returned."
}

// table renders rows as Markdown with headers as the fixed column set.
// Rows that are not maps, or lack a column, render empty cells.
func table(headers []string, rows []value.Value) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|-" + strings.Repeat("-|-", max(len(headers)-1, 0)) + "-|")
	for _, row := range rows {
		m, _ := row.AsMap()
		cells := make([]string, len(headers))
		for i, h := range headers {
			if cell, ok := m.Get(h); ok && !cell.IsNull() {
				cells[i] = cell.Text()
			}
		}
		b.WriteString("\n| " + strings.Join(cells, " | ") + " |")
	}
	return b.String()
}

func pretty(v value.Value) string {
	raw, err := v.MarshalJSON()
	if err != nil {
		return v.Text()
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
