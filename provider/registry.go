package provider

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds a provider on demand.
type Factory func() (Provider, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a provider factory to the registry, replacing any factory
// already registered under name. Provider packages call it from init().
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// Get builds the provider registered under name.
func Get(name string) (Provider, error) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %q (available: %v)", name, Available())
	}

	p, err := factory()
	if err != nil {
		return nil, fmt.Errorf("building provider %q: %w", name, err)
	}
	return p, nil
}

// GetStreaming builds the provider registered under name and checks that it
// can stream.
func GetStreaming(name string) (StreamingProvider, error) {
	p, err := Get(name)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(StreamingProvider)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support streaming", name)
	}
	return sp, nil
}

// Available returns the sorted names of all registered providers.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a provider is registered.
func IsRegistered(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[name]
	return ok
}
