package datasource

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// CatalogFactory creates a catalog from a generic config map.
type CatalogFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (Catalog, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]CatalogFactory)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(driver string, factory CatalogFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[driver] = factory
}

// NewCatalog creates a catalog for the given driver.
func NewCatalog(ctx context.Context, driver string, config map[string]any, logger *zap.Logger) (Catalog, error) {
	registryMu.RLock()
	factory, ok := registry[driver]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported datasource driver: %s", driver)
	}
	return factory(ctx, config, logger)
}

// RegisteredDrivers returns the names of all registered drivers.
func RegisteredDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	drivers := make([]string, 0, len(registry))
	for driver := range registry {
		drivers = append(drivers, driver)
	}
	return drivers
}
