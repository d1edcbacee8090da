// Package providers builds the LLM registry from configuration.
package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/harunnryd/mcpchat/pkg/config"
	"github.com/harunnryd/mcpchat/pkg/configutil"
	"github.com/harunnryd/mcpchat/pkg/errorsx"
	"github.com/harunnryd/mcpchat/pkg/llm"
	"github.com/harunnryd/mcpchat/pkg/metrics"
	"github.com/harunnryd/mcpchat/pkg/providers/mock"
	"github.com/harunnryd/mcpchat/pkg/providers/ollama"
	"github.com/harunnryd/mcpchat/pkg/providers/openai"
	"github.com/harunnryd/mcpchat/pkg/resilience"
)

// Known are the provider names the service understands.
var Known = []string{"openai", "ollama", "mock"}

var mockSchema = configutil.Schema{
	Optional: []string{"response_text", "stream_chunks", "tool_calls", "final_text", "model"},
}

type factory func(path string, settings map[string]any, obs metrics.Observer) (llm.LLMAdapter, error)

var factories = map[string]factory{
	"openai": buildOpenAI,
	"ollama": buildOllama,
	"mock":   buildMock,
}

// Build registers every configured provider it can construct. A provider
// with bad or missing settings is logged and left out; Build fails only
// when nothing could be registered.
func Build(cfg config.LLMConfig, obs metrics.Observer, logger *slog.Logger) (*llm.Registry, error) {
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	reg := llm.NewRegistry(Known...)
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := cfg.Providers[name]
		path := "llm.providers." + name + ".settings"
		build, ok := factories[pc.Provider]
		if !ok {
			logger.Warn("llm_provider_unknown", "name", name, "provider", pc.Provider,
				"reason_code", string(errorsx.ReasonProviderUnknown))
			continue
		}
		adapter, err := build(path, pc.Settings, obs)
		if err != nil {
			logger.Warn("llm_provider_unconfigured", "name", name, "provider", pc.Provider, "error", err,
				"reason_code", string(errorsx.ReasonProviderUnconfigured))
			continue
		}
		reg.Register(name, adapter)
		logger.Info("llm_provider_registered", "name", name, "provider", pc.Provider)
	}
	if reg.Len() == 0 {
		return nil, errorsx.New(errorsx.ReasonConfig, "no LLM provider configured")
	}
	return reg, nil
}

func buildOpenAI(path string, settings map[string]any, obs metrics.Observer) (llm.LLMAdapter, error) {
	var s openai.Settings
	if err := configutil.Decode(path, settings, openai.SettingsSchema, &s); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(s.APIKey, path+".api_key"); err != nil {
		return nil, err
	}
	var adapter llm.LLMAdapter = llm.NewRetryAdapter(openai.NewAdapterWithSettings(s), llm.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   250 * time.Millisecond,
		Jitter:      0.2,
	})
	if !configutil.BoolValue(s.UseCircuitBreaker, true) {
		return adapter, nil
	}
	threshold := configutil.IntValue(s.CircuitThreshold, 3)
	cooldown := configutil.IntValue(s.CircuitCooldownMS, 30000)
	breaker := llm.NewCircuitBreakerAdapter(adapter,
		resilience.NewCircuitBreaker(threshold, time.Duration(cooldown)*time.Millisecond))
	breaker.SetObserver(obs)
	return breaker, nil
}

func buildOllama(path string, settings map[string]any, obs metrics.Observer) (llm.LLMAdapter, error) {
	var s ollama.Settings
	if err := configutil.Decode(path, settings, ollama.SettingsSchema, &s); err != nil {
		return nil, err
	}
	return llm.NewRetryAdapter(ollama.NewAdapter(s), llm.RetryConfig{MaxAttempts: 2}), nil
}

func buildMock(path string, settings map[string]any, obs metrics.Observer) (llm.LLMAdapter, error) {
	var s mock.LLMConfig
	if err := configutil.Decode(path, settings, mockSchema, &s); err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}
	return mock.NewLLMAdapter(s), nil
}
