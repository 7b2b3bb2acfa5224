// Package kvstore persists the small amount of client state that must survive a restart:
// the session token, the selected tenant and the UI language. There are drivers for memory,
// Redis, PostgreSQL and Spanner, and a sealing wrapper that encrypts values at rest.
package kvstore

import (
	"context"
	"sync"

	"github.com/cccteam/ccc"
)

// Keys persisted by the session core.
const (
	KeyToken             = "token"
	KeySelectedCompanyID = "selectedCompanyId"
	KeyLanguage          = "language"
)

// Store is a string keyed value store. Writes are last-writer-wins.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

var _ Store = (*Memory)(nil)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value for key.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	_, span := ccc.StartTrace(ctx)
	defer span.End()

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]

	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	_, span := ccc.StartTrace(ctx)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value

	return nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	_, span := ccc.StartTrace(ctx)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)

	return nil
}
