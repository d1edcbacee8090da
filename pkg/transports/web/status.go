package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/value"
)

const statusTimeout = 2 * time.Second

// Optional capabilities of the tool provider used by the status endpoints.
type (
	pinger interface {
		Ping(ctx context.Context) error
	}
	serverInfoer interface {
		ServerInfo() (name, version string)
	}
)

type healthReport struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details"`
}

func (t *Transport) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	report := healthReport{Status: "ok", Details: map[string]string{}}
	if err := t.toolsReady(ctx); err != nil {
		report.Status = "error"
		report.Details["mcp_session"] = "not connected: " + err.Error()
	} else {
		report.Details["mcp_session"] = "connected"
	}
	for _, name := range t.deps.Providers.Names() {
		adapter, err := t.deps.Providers.Get(name)
		if err != nil {
			continue
		}
		lister, ok := llm.Unwrap(adapter).(llm.ModelLister)
		if !ok {
			report.Details[name] = "configured"
			continue
		}
		if _, err := lister.Models(ctx); err != nil {
			report.Status = "error"
			report.Details[name] = "error " + err.Error()
			continue
		}
		report.Details[name] = "reachable"
	}
	code := http.StatusOK
	if report.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

// toolsReady reports whether the tool provider can be reached.
func (t *Transport) toolsReady(ctx context.Context) error {
	if t.deps.Tools == nil {
		return errNoToolProvider
	}
	if p, ok := t.deps.Tools.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type toolInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema value.Value `json:"input_schema"`
}

type uiConfig struct {
	ServerName      string              `json:"server_name"`
	MCPVersion      string              `json:"mcp_version"`
	MCPRuntime      string              `json:"mcp_runtime"`
	Tools           []toolInfo          `json:"tools"`
	DBConnections   []value.Value       `json:"db_connections"`
	Providers       []string            `json:"providers"`
	DefaultProvider string              `json:"default_provider"`
	Models          map[string][]string `json:"models"`
	OllamaModels    []string            `json:"ollama_models"`
}

func (t *Transport) handleUIConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	if err := t.toolsReady(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "MCP session not ready"})
		return
	}
	tools, err := t.deps.Tools.ListTools(ctx)
	if err != nil {
		t.logger.Warn("ui_config_tools_failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "MCP session not ready"})
		return
	}

	cfg := uiConfig{
		ServerName:      "Unknown Server",
		MCPVersion:      "N/A",
		MCPRuntime:      "go",
		Tools:           make([]toolInfo, 0, len(tools)),
		DBConnections:   []value.Value{},
		Providers:       t.deps.Providers.Names(),
		DefaultProvider: t.cfg.DefaultProvider,
		Models:          map[string][]string{},
		OllamaModels:    []string{},
	}
	if si, ok := t.deps.Tools.(serverInfoer); ok {
		if name, version := si.ServerInfo(); name != "" {
			cfg.ServerName, cfg.MCPVersion = name, version
		}
	}
	hasConnections := false
	for _, tool := range tools {
		cfg.Tools = append(cfg.Tools, toolInfo{Name: tool.Name, Description: tool.Description, InputSchema: tool.Schema})
		if tool.Name == llm.ListConnectionsTool {
			hasConnections = true
		}
	}
	if hasConnections {
		cfg.DBConnections = t.connections(ctx)
	}
	for _, name := range cfg.Providers {
		models := t.models(ctx, name)
		cfg.Models[name] = models
		if name == "ollama" {
			cfg.OllamaModels = models
		}
	}
	writeJSON(w, http.StatusOK, cfg)
}

// connections asks the list-connections tool for its entries. Results may
// be a bare list or an object holding one under "connections" or "result".
func (t *Transport) connections(ctx context.Context) []value.Value {
	res, err := t.deps.Tools.Invoke(ctx, llm.ListConnectionsTool, value.NewMap())
	if err != nil {
		t.logger.Warn("ui_config_connections_failed", "error", err)
		return []value.Value{}
	}
	if m, ok := res.AsMap(); ok {
		for _, key := range []string{"connections", "result"} {
			if v, ok := m.Get(key); ok {
				res = v
				break
			}
		}
	}
	items, ok := res.AsList()
	if !ok {
		return []value.Value{}
	}
	return items
}

func (t *Transport) models(ctx context.Context, provider string) []string {
	adapter, err := t.deps.Providers.Get(provider)
	if err != nil {
		return []string{}
	}
	inner := llm.Unwrap(adapter)
	if lister, ok := inner.(llm.ModelLister); ok {
		models, err := lister.Models(ctx)
		if err == nil {
			return models
		}
		t.logger.Warn("ui_config_models_failed", "provider", provider, "error", err)
	}
	if dm, ok := inner.(llm.DefaultModeler); ok && dm.DefaultModel() != "" {
		return []string{dm.DefaultModel()}
	}
	return []string{}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
