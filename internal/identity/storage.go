package identity

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrStorageUnavailable is returned by storage that cannot persist anything.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Storage is the durable key/value store a thread id lives in. Any method may
// fail; callers degrade to an ephemeral identity.
type Storage interface {
	// Get returns "" with a nil error when the key is absent.
	Get(key string) (string, error)
	Set(key, value string) error
}

// MemoryStorage keeps values for the lifetime of the process.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// UnavailableStorage stands in for disabled storage: every call fails.
type UnavailableStorage struct{}

func (UnavailableStorage) Get(string) (string, error) { return "", ErrStorageUnavailable }

func (UnavailableStorage) Set(string, string) error { return ErrStorageUnavailable }
