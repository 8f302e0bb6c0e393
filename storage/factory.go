package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blogem/memorial-registry/config"
)

// FactoryFunc builds a backend from the backup configuration
type FactoryFunc func(cfg config.BackupConfig) (Storage, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]FactoryFunc)
)

// Register makes a backend available under name
func Register(name string, factory FactoryFunc) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New creates the backend selected by cfg.Backend
func New(cfg config.BackupConfig) (Storage, error) {
	mu.RLock()
	factory, ok := factories[cfg.Backend]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported backup backend: %q (registered: %s)", cfg.Backend, strings.Join(Backends(), ", "))
	}
	return factory(cfg)
}

// Backends lists the registered backend names
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
