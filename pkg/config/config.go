// Package config loads the service configuration with viper.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/harunnryd/mcpchat/pkg/errorsx"
)

// EnvPrefix prefixes environment overrides, e.g. MCPCHAT_SERVER_ADDR.
const EnvPrefix = "MCPCHAT"

type Config struct {
	Server    ServerConfig  `mapstructure:"server"`
	MCP       MCPConfig     `mapstructure:"mcp"`
	LLM       LLMConfig     `mapstructure:"llm"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
	Privacy   PrivacyConfig `mapstructure:"privacy"`
	Debug     bool          `mapstructure:"debug"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SessionIdleTTL int      `mapstructure:"session_idle_ttl_ms"`
	ShutdownMS     int      `mapstructure:"shutdown_timeout_ms"`
}

type MCPConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	ConnectRetries int    `mapstructure:"connect_retries"`
	RetryBackoffMS int    `mapstructure:"retry_backoff_ms"`
}

type LLMConfig struct {
	DefaultProvider string                    `mapstructure:"default_provider"`
	ToolChoice      string                    `mapstructure:"tool_choice"`
	Temperature     float64                   `mapstructure:"temperature"`
	Providers       map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig names an adapter and its free-form settings. Provider
// defaults to the map key it is listed under.
type ProviderConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type MetricsConfig struct {
	JSONLPath     string `mapstructure:"jsonl_path"`
	AsyncQueue    int    `mapstructure:"async_queue"`
	TimelineDir   string `mapstructure:"timeline_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
	LogEvents     bool   `mapstructure:"log_events"`
	LogLatency    bool   `mapstructure:"log_latency"`
}

// Retention is zero when timelines are kept forever.
func (c MetricsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// SessionIdleTTLDuration is zero when idle sessions are kept forever.
func (c ServerConfig) SessionIdleTTLDuration() time.Duration {
	return time.Duration(c.SessionIdleTTL) * time.Millisecond
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownMS) * time.Millisecond
}

func (c MCPConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.session_idle_ttl_ms", 0)
	v.SetDefault("server.shutdown_timeout_ms", 10000)
	v.SetDefault("mcp.endpoint", "http://mcp-server:8000/sse")
	v.SetDefault("mcp.connect_retries", 3)
	v.SetDefault("mcp.retry_backoff_ms", 500)
	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.tool_choice", "auto")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.providers", map[string]any{
		"openai": map[string]any{
			"settings": map[string]any{
				"api_key": "${OPENAI_API_KEY}",
				"model":   "gpt-4o-mini",
			},
		},
		"ollama": map[string]any{
			"settings": map[string]any{
				"base_url": "${OLLAMA_BASE_URL}",
				"model":    "llama3.1",
			},
		},
	})
	v.SetDefault("metrics.jsonl_path", "")
	v.SetDefault("metrics.async_queue", 1024)
	v.SetDefault("metrics.timeline_dir", "")
	v.SetDefault("metrics.retention_days", 7)
	v.SetDefault("metrics.log_events", false)
	v.SetDefault("metrics.log_latency", true)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads path (optional; "" uses defaults and environment only),
// expands ${VAR} references in string values and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsx.Wrap(fmt.Errorf("read config: %w", err), errorsx.ReasonConfig)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("unmarshal: %w", err), errorsx.ReasonConfig)
	}
	cfg.normalize()
	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("validate config: %w", err), errorsx.ReasonConfig)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.LLM.DefaultProvider = strings.ToLower(strings.TrimSpace(c.LLM.DefaultProvider))
	c.LLM.ToolChoice = strings.ToLower(strings.TrimSpace(c.LLM.ToolChoice))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	providers := make(map[string]ProviderConfig, len(c.LLM.Providers))
	for name, p := range c.LLM.Providers {
		name = strings.ToLower(name)
		if strings.TrimSpace(p.Provider) == "" {
			p.Provider = name
		}
		p.Provider = strings.ToLower(p.Provider)
		providers[name] = p
	}
	c.LLM.Providers = providers
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !strings.HasPrefix(c.Server.WebsocketPath, "/") {
		return fmt.Errorf("server.ws_path must start with /")
	}
	if strings.TrimSpace(c.MCP.Endpoint) == "" {
		return fmt.Errorf("mcp.endpoint is required")
	}
	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("llm.default_provider is required")
	}
	switch c.LLM.ToolChoice {
	case "auto", "required":
	default:
		return fmt.Errorf("llm.tool_choice must be auto or required, got %q", c.LLM.ToolChoice)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	if c.Server.SessionIdleTTL < 0 {
		return fmt.Errorf("server.session_idle_ttl_ms must not be negative")
	}
	if c.Metrics.RetentionDays < 0 {
		return fmt.Errorf("metrics.retention_days must not be negative")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	for name, p := range cfg.LLM.Providers {
		p.Settings = expandSettings(p.Settings)
		cfg.LLM.Providers[name] = p
	}
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

// expandValue expands string fields in place. Maps are left to
// expandSettings.
func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if !v.IsNil() {
			expandValue(v.Elem())
		}
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
