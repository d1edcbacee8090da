package toolargs

import (
	"github.com/harunnryd/mcpchat/pkg/errorsx"
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/value"
)

// MissingArgumentError names the argument a tool call lacks.
type MissingArgumentError struct {
	Tool    string
	Param   string
	Message string
}

func (e *MissingArgumentError) Error() string { return e.Message }

type rule struct {
	param   string
	present bool // key must exist, emptiness allowed
	message string
}

// contracts is a whitelist; tools without an entry pass unconditionally.
var contracts = map[string][]rule{
	"get_current_weather": {
		{param: "city", message: "The 'city' parameter is required to get the weather. Please provide a city name."},
	},
	"run_sql_query": {
		{param: "sql_query", message: "The 'sql_query' parameter is required to run a query."},
	},
	"find_documents": {
		{param: "collection", message: "The 'collection' parameter is required to find documents."},
		{param: "filter", present: true, message: "The 'filter' parameter is required to find documents."},
	},
	"count_documents": {
		{param: "collection", message: "The 'collection' parameter is required to count documents."},
	},
}

const connectionMessage = "The 'db_connection_name' parameter is required for this database tool."

// Validate checks args against the contract for tool. The weather check runs
// first, then the connection check for connection-aware tools, then the
// remaining per-tool rules. The returned error wraps a *MissingArgumentError.
func Validate(tool llm.Tool, args *value.Map) error {
	rules := contracts[tool.Name]
	if tool.Name == "get_current_weather" {
		if err := check(tool.Name, rules[0], args); err != nil {
			return err
		}
		rules = rules[1:]
	}
	if tool.AcceptsParam(llm.ConnectionParam) {
		r := rule{param: llm.ConnectionParam, message: connectionMessage}
		if err := check(tool.Name, r, args); err != nil {
			return err
		}
	}
	for _, r := range rules {
		if err := check(tool.Name, r, args); err != nil {
			return err
		}
	}
	return nil
}

func check(tool string, r rule, args *value.Map) error {
	v, ok := args.Get(r.param)
	if r.present && ok {
		return nil
	}
	if !r.present && ok && !isFalsy(v) {
		return nil
	}
	return errorsx.Wrap(&MissingArgumentError{Tool: tool, Param: r.param, Message: r.message}, errorsx.ReasonToolArgsMissing)
}

// isFalsy treats null, empty, false and zero as missing.
func isFalsy(v value.Value) bool {
	if v.IsEmpty() {
		return true
	}
	if b, ok := v.AsBool(); ok {
		return !b
	}
	if f, ok := v.AsFloat(); ok {
		return f == 0
	}
	return false
}
