// Package syncpad holds the collaboration core: the document state
// machine, the registry of resident documents, and the persistence
// backends they write through to.
package syncpad

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotImplemented     = errors.New("not implemented")
	ErrRevisionOutOfRange = errors.New("revision out of range")
	ErrMalformedOperation = errors.New("malformed operation")
)

// PersistedDocument is the durable snapshot of a document. Revision and
// history are deliberately not part of it; only converged text survives
// eviction.
type PersistedDocument struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// Database is the key-to-snapshot store the registry persists through.
// Load returns ErrNotFound for ids that were never stored. Implementations
// must tolerate concurrent calls for different ids; the registry never
// issues concurrent stores for the same id.
type Database interface {
	Load(ctx context.Context, id string) (PersistedDocument, error)
	Store(ctx context.Context, id string, doc PersistedDocument) error
	Close() error
}

// InMemoryDatabase keeps snapshots in a map. It backs tests and the
// memory:// DSN scheme.
type InMemoryDatabase struct {
	mu   sync.Mutex
	docs map[string]PersistedDocument
}

func NewInMemoryDatabase() *InMemoryDatabase {
	return &InMemoryDatabase{docs: map[string]PersistedDocument{}}
}

func (d *InMemoryDatabase) Load(ctx context.Context, id string) (PersistedDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[id]
	if !ok {
		return PersistedDocument{}, ErrNotFound
	}
	return doc, nil
}

func (d *InMemoryDatabase) Store(ctx context.Context, id string, doc PersistedDocument) error {
	if id == "" {
		return ErrInvalidInput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[id] = doc
	return nil
}

func (d *InMemoryDatabase) Close() error {
	return nil
}
