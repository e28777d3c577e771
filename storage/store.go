package storage

import (
	"errors"
	"sync"
)

// Persisted session keys shared with the login flow. Clearing every one of
// them on logout is part of the contract with the console pages.
const (
	KeyToken        = "token"
	KeyUserInfo     = "userInfo"
	KeyIsLoggedIn   = "isLoggedIn"
	KeyUserType     = "userType"
	KeyUsername     = "username"
	KeyIsAdmin      = "isAdmin"
	KeyUserRole     = "userRole"
	KeyRememberUser = "remember_user"
	KeyRememberMode = "remember_mode"
)

// SessionKeys lists every key performLogout must remove.
var SessionKeys = []string{
	KeyToken,
	KeyUserInfo,
	KeyIsLoggedIn,
	KeyUserType,
	KeyUsername,
	KeyIsAdmin,
	KeyUserRole,
	KeyRememberUser,
	KeyRememberMode,
}

var ErrKeyNotFound = errors.New("storage: key not found")

type (
	// Store is the persisted client-side session state. Implementations must
	// be safe for concurrent use.
	Store interface {
		Get(key string) (string, error)
		Set(key string, value string) error
		Delete(key string) error
	}
)

// MemoryStore is the default Store, a mutex-guarded map.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(key string, value string) error {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}
