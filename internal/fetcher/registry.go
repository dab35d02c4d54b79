package fetcher

import (
	"fmt"
	"sort"
	"sync"

	"rumble-backup/pkg/models"
)

// Factory creates a fetch strategy from shared options.
type Factory func(opts Options) (models.Fetcher, error)

// Registry maps strategy names to factories so the strategy stays a
// config-time choice.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in strategies installed.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("ytdlp", func(opts Options) (models.Fetcher, error) {
		return NewYtdlpFetcher(opts), nil
	})
	r.Register("embed", func(opts Options) (models.Fetcher, error) {
		return NewEmbedFetcher(opts)
	})
	return r
}

// Register installs a factory under a strategy name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New creates the named strategy. Unknown names fail at startup rather than
// mid-run.
func (r *Registry) New(name string, opts Options) (models.Fetcher, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown fetch strategy %q (available: %v)", name, r.Names())
	}
	return factory(opts)
}

// Names lists the registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
