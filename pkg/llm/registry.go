package llm

import (
	"sort"
	"strings"
	"sync"

	"github.com/harunnryd/mcpchat/pkg/errorsx"
)

var displayNames = map[string]string{
	"openai": "OpenAI",
	"ollama": "Ollama",
	"mock":   "Mock",
}

// Registry resolves provider names to adapters. Names can be known but
// unconfigured, which is reported differently from an unknown name.
type Registry struct {
	mu       sync.RWMutex
	known    map[string]struct{}
	adapters map[string]LLMAdapter
}

func NewRegistry(known ...string) *Registry {
	r := &Registry{
		known:    make(map[string]struct{}),
		adapters: make(map[string]LLMAdapter),
	}
	for _, name := range known {
		r.known[strings.ToLower(name)] = struct{}{}
	}
	return r
}

// Register makes adapter available under name.
func (r *Registry) Register(name string, adapter LLMAdapter) {
	name = strings.ToLower(name)
	r.mu.Lock()
	r.known[name] = struct{}{}
	r.adapters[name] = adapter
	r.mu.Unlock()
}

// Get returns the adapter for name.
func (r *Registry) Get(name string) (LLMAdapter, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.adapters[key]; ok {
		return a, nil
	}
	if _, ok := r.known[key]; ok {
		return nil, errorsx.New(errorsx.ReasonProviderUnconfigured, "%s client not configured.", DisplayName(key))
	}
	return nil, errorsx.New(errorsx.ReasonProviderUnknown, "Unknown LLM provider: %s", name)
}

// Names lists configured providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// DisplayName returns the human-facing name of a provider.
func DisplayName(name string) string {
	if d, ok := displayNames[strings.ToLower(name)]; ok {
		return d
	}
	return name
}
