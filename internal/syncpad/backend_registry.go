package syncpad

import (
	"strings"
	"sync"
)

// DatabaseFactory builds a Database from a full DSN.
type DatabaseFactory func(dsn string) (Database, error)

var databaseFactoryRegistry = struct {
	mu        sync.RWMutex
	factories map[string]DatabaseFactory
}{
	factories: map[string]DatabaseFactory{},
}

// RegisterDatabaseFactory makes a custom Database available under the
// given DSN scheme. Registered factories take precedence over the
// built-in schemes.
func RegisterDatabaseFactory(scheme string, factory DatabaseFactory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	databaseFactoryRegistry.mu.Lock()
	defer databaseFactoryRegistry.mu.Unlock()
	databaseFactoryRegistry.factories[scheme] = factory
}

func lookupDatabaseFactory(scheme string) (DatabaseFactory, bool) {
	scheme = normalizeScheme(scheme)
	databaseFactoryRegistry.mu.RLock()
	defer databaseFactoryRegistry.mu.RUnlock()
	factory, ok := databaseFactoryRegistry.factories[scheme]
	return factory, ok
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
