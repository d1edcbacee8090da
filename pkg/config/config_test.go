package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/mcpchat/pkg/errorsx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":3000" || cfg.Server.WebsocketPath != "/ws" {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.MCP.Endpoint != "http://mcp-server:8000/sse" || cfg.MCP.ConnectRetries != 3 {
		t.Fatalf("unexpected mcp defaults %+v", cfg.MCP)
	}
	if cfg.LLM.DefaultProvider != "openai" || cfg.LLM.ToolChoice != "auto" {
		t.Fatalf("unexpected llm defaults %+v", cfg.LLM)
	}
	if !cfg.Privacy.RedactPII || cfg.LogFormat != "json" {
		t.Fatalf("unexpected ambient defaults %+v", cfg)
	}
	if cfg.Metrics.Retention().Hours() != 7*24 || !cfg.Metrics.LogLatency || cfg.Metrics.LogEvents {
		t.Fatalf("unexpected metrics defaults %+v", cfg.Metrics)
	}
	openai, ok := cfg.LLM.Providers["openai"]
	if !ok || openai.Provider != "openai" {
		t.Fatalf("expected default openai provider, got %+v", cfg.LLM.Providers)
	}
	if key, _ := openai.Settings["api_key"].(string); key != "" {
		t.Fatalf("unset env should expand to empty, got %q", key)
	}
}

func TestLoadFileExpandsEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MCP_HOST", "tools.internal")
	path := writeConfig(t, `
server:
  addr: ":8080"
  session_idle_ttl_ms: 60000
mcp:
  endpoint: "http://${MCP_HOST}:8000/sse"
llm:
  default_provider: Mock
  tool_choice: required
  providers:
    local:
      provider: mock
      settings:
        response_text: "hi"
log_format: text
debug: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.SessionIdleTTLDuration().Seconds() != 60 {
		t.Fatalf("unexpected server %+v", cfg.Server)
	}
	if cfg.MCP.Endpoint != "http://tools.internal:8000/sse" {
		t.Fatalf("endpoint not expanded: %s", cfg.MCP.Endpoint)
	}
	if cfg.LLM.DefaultProvider != "mock" || cfg.LLM.ToolChoice != "required" || !cfg.Debug {
		t.Fatalf("unexpected llm %+v", cfg.LLM)
	}
	local, ok := cfg.LLM.Providers["local"]
	if !ok || local.Provider != "mock" {
		t.Fatalf("expected local mock provider, got %+v", cfg.LLM.Providers)
	}
	if key, _ := cfg.LLM.Providers["openai"].Settings["api_key"].(string); key != "sk-test" {
		t.Fatalf("api key not expanded: %q", key)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MCPCHAT_SERVER_ADDR", ":9999")
	t.Setenv("MCPCHAT_MCP_ENDPOINT", "stdio://mcp-server")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" || cfg.MCP.Endpoint != "stdio://mcp-server" {
		t.Fatalf("env override ignored: %+v %+v", cfg.Server, cfg.MCP)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"llm:\n  tool_choice: sometimes\n", "llm.tool_choice"},
		{"log_format: xml\n", "log_format"},
		{"server:\n  ws_path: ws\n", "server.ws_path"},
		{"mcp:\n  endpoint: \"\"\n", "mcp.endpoint"},
		{"server:\n  session_idle_ttl_ms: -1\n", "session_idle_ttl_ms"},
		{"metrics:\n  retention_days: -2\n", "metrics.retention_days"},
	}
	for _, tc := range cases {
		_, err := Load(writeConfig(t, tc.body))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%q: expected %s error, got %v", tc.body, tc.want, err)
		}
		if errorsx.Reason(err) != errorsx.ReasonConfig {
			t.Fatalf("unexpected reason %s", errorsx.Reason(err))
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
