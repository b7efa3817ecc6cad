package provider

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethiscan/orchestrator/internal/config"
	"github.com/ethiscan/orchestrator/internal/types"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// Registry holds the configured provider adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(name string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = adapter
}

func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// ReplaceAll swaps the adapter set for src's under the write lock, so a
// config reload never copies the Registry (and its mutex) while readers
// hold it.
func (r *Registry) ReplaceAll(src *Registry) {
	src.mu.RLock()
	adapters := make(map[string]Adapter, len(src.adapters))
	for name, a := range src.adapters {
		adapters[name] = a
	}
	src.mu.RUnlock()

	r.mu.Lock()
	r.adapters = adapters
	r.mu.Unlock()
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// Resolve picks the preferred provider, falling back to any registered
// adapter that satisfies the vision requirement. A request carrying an
// image must never reach a text-only provider.
func (r *Registry) Resolve(preferred string, needVision bool) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.adapters[preferred]; ok {
		if !needVision || a.SupportsVision() {
			return a, nil
		}
	}
	for _, a := range r.adapters {
		if !needVision || a.SupportsVision() {
			return a, nil
		}
	}
	if needVision {
		return nil, &Error{Code: types.ErrInvalidRequest, Message: "no configured provider accepts image input"}
	}
	return nil, &Error{Code: types.ErrProvider, Message: "no provider configured"}
}

// BuildFromConfig constructs adapters from the providers config, each with
// its own HTTP client and circuit breaker.
func BuildFromConfig(provCfg *config.ProvidersConfig) (*Registry, error) {
	registry := NewRegistry()
	for name, cfg := range provCfg.Providers {
		maxConns := cfg.MaxConcurrent
		if maxConns <= 0 {
			maxConns = 10
		}
		client := &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxConns,
				MaxIdleConnsPerHost: maxConns,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}

		var adapter Adapter
		switch cfg.Type {
		case "gemini":
			adapter = NewGeminiAdapter(cfg, client)
		case "openai":
			adapter = NewOpenAIAdapter(cfg, client)
		default:
			return nil, fmt.Errorf("provider %s: unknown type %q", name, cfg.Type)
		}
		registry.Register(name, Guard(adapter, NewBreaker(breakerThreshold, breakerCooldown)))
	}
	return registry, nil
}
