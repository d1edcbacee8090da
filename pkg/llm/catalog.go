package llm

import (
	"github.com/harunnryd/mcpchat/pkg/value"
)

// FunctionTool is the function-calling tool shape shared by OpenAI-compatible
// and Ollama chat APIs.
type FunctionTool struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

type FunctionSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  value.Value `json:"parameters"`
}

// DatabaseToolset lists the connection-aware tools still offered when a
// session is pinned to one connection.
var DatabaseToolset = map[string]struct{}{
	"list_tables":       {},
	"run_sql_query":     {},
	"find_documents":    {},
	"count_documents":   {},
	"get_table_schema":  {},
	"get_database_info": {},
}

// FunctionTools maps descriptors into the function-calling wire shape.
// A missing schema becomes an empty object schema.
func FunctionTools(tools []Tool) []FunctionTool {
	out := make([]FunctionTool, 0, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			continue
		}
		out = append(out, FunctionTool{
			Type: "function",
			Function: FunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parametersOrEmpty(t.Schema),
			},
		})
	}
	return out
}

func parametersOrEmpty(schema value.Value) value.Value {
	if m, ok := schema.AsMap(); ok && m.Len() > 0 {
		return schema
	}
	m := value.NewMap()
	m.Set("type", value.String("object"))
	m.Set("properties", value.Object(nil))
	return value.Object(m)
}

// ScopeTools returns the tools offered to a session. With a pinned connection,
// connection-aware tools outside DatabaseToolset are hidden.
func ScopeTools(tools []Tool, connection string) []Tool {
	if connection == "" {
		return tools
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if !t.AcceptsParam(ConnectionParam) {
			out = append(out, t)
			continue
		}
		if _, ok := DatabaseToolset[t.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// IndexTools keys tools by name, skipping unnamed entries.
func IndexTools(tools []Tool) map[string]Tool {
	out := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			continue
		}
		out[t.Name] = t
	}
	return out
}
