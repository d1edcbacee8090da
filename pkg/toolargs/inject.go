package toolargs

import (
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/value"
)

// InjectConnection returns a copy of args with db_connection_name set to
// connection when the tool declares that parameter and the caller left it
// out. args itself is never modified.
func InjectConnection(tool llm.Tool, args *value.Map, connection string) *value.Map {
	out := args.Clone()
	if out == nil {
		out = value.NewMap()
	}
	if connection == "" || !tool.AcceptsParam(llm.ConnectionParam) {
		return out
	}
	out.SetDefault(llm.ConnectionParam, value.String(connection))
	return out
}
