package cascade

import (
	"fmt"
	"sync"
)

// EngineFactory builds the Options for a namespace's engine. The registry
// calls it once per namespace; per-tenant config overrides live here.
type EngineFactory func(namespace string) Options

// Registry maps tenant namespaces to their cascade engines. It replaces the
// ambient per-tenant singleton: the host process constructs one Registry,
// owns it, and passes it down explicitly.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	factory EngineFactory
}

// NewRegistry creates a registry that builds engines on demand through the
// given factory
func NewRegistry(factory EngineFactory) *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		factory: factory,
	}
}

// For returns the engine serving a namespace, constructing it on first use
func (r *Registry) For(namespace string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[namespace]; ok {
		return e, nil
	}

	opts := r.factory(namespace)
	opts.Namespace = namespace
	e, err := NewEngine(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine for namespace %q: %w", namespace, err)
	}
	r.engines[namespace] = e
	return e, nil
}

// UpdateConfig hot-reloads the configuration of every registered engine
func (r *Registry) UpdateConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.engines {
		e.UpdateConfig(cfg)
	}
}

// Close shuts down every registered engine, returning the first error
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for ns, e := range r.engines {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close engine %q: %w", ns, err)
		}
	}
	r.engines = make(map[string]*Engine)
	return firstErr
}
