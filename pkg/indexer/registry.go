package indexer

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
)

// Factory creates an indexer instance from its config entry.
type Factory func(cfg config.IndexerConfig, log *logger.Logger) (Indexer, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register makes an indexer type available to Create. It is typically called
// from an init function. Type names are case-insensitive.
func Register(indexerType string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	name := strings.ToLower(indexerType)
	if _, exists := registry[name]; exists {
		logger.GetDefaultLogger().Infof("indexer type %s is already registered, overwriting", name)
	}

	registry[name] = factory
}

// GetFactory returns the factory registered for indexerType, nil if none.
func GetFactory(indexerType string) Factory {
	mu.RLock()
	defer mu.RUnlock()

	return registry[strings.ToLower(indexerType)]
}

// ListRegistered returns the registered type names, sorted.
func ListRegistered() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for t := range registry {
		names = append(names, t)
	}
	slices.Sort(names)

	return names
}

// Create builds an indexer of cfg.Type.
func Create(cfg config.IndexerConfig, log *logger.Logger) (Indexer, error) {
	factory := GetFactory(cfg.Type)
	if factory == nil {
		return nil, fmt.Errorf("unknown indexer type: %s (registered types: %v)", cfg.Type, ListRegistered())
	}

	idx, err := factory(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer %s: %w", cfg.Name, err)
	}

	return idx, nil
}
