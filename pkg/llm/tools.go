package llm

import (
	"context"

	"github.com/harunnryd/mcpchat/pkg/value"
)

// ListConnectionsTool is the tool that enumerates data-source connections.
const ListConnectionsTool = "list_database_connections"

// ConnectionParam is the argument name tools use for the target connection.
const ConnectionParam = "db_connection_name"

// Tool is a provider-agnostic tool descriptor.
type Tool struct {
	Name        string
	Description string
	Schema      value.Value
}

// Properties returns the declared parameter properties, or nil.
func (t Tool) Properties() *value.Map {
	schema, ok := t.Schema.AsMap()
	if !ok {
		return nil
	}
	props, ok := schema.Get("properties")
	if !ok {
		return nil
	}
	m, _ := props.AsMap()
	return m
}

// AcceptsParam reports whether the schema declares the named property.
func (t Tool) AcceptsParam(name string) bool {
	return t.Properties().Has(name)
}

// Required returns the schema's required property names.
func (t Tool) Required() []string {
	schema, ok := t.Schema.AsMap()
	if !ok {
		return nil
	}
	req, ok := schema.Get("required")
	if !ok {
		return nil
	}
	items, _ := req.AsList()
	var out []string
	for _, item := range items {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// ToolProvider is the external capability host.
type ToolProvider interface {
	ListTools(ctx context.Context) ([]Tool, error)
	Invoke(ctx context.Context, name string, args *value.Map) (value.Value, error)
}
