package broker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/miladsoleymani/eventbus/core"
)

// Factory creates a broker client from the given Config.
type Factory func(cfg Config) (core.Client, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a named client factory. Plugins call this from init().
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Create instantiates a broker client by name using the registered factory.
func Create(name string, cfg Config) (core.Client, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("eventbus: unknown broker %q", name)
	}
	return f(cfg)
}

// Names returns the registered broker names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
