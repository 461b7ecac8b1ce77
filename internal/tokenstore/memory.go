package tokenstore

import (
	"context"
	"sync"
	"time"
)

// memoryEntry with a zero expiresAt never expires.
type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore keeps credentials in process memory. Used in development and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	now        func() time.Time
}

func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	m.mu.RLock()
	entry, ok := m.entries[sessionID]
	m.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(m.now()) {
		m.mu.Lock()
		delete(m.entries, sessionID)
		m.mu.Unlock()
		return "", nil
	}
	return entry.token, nil
}

func (m *MemoryStore) Save(_ context.Context, sessionID, token string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	now := m.now()
	entry := memoryEntry{token: token}
	if ttl := TokenTTL(token, m.defaultTTL, now); ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	m.mu.Lock()
	m.entries[sessionID] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	m.mu.Lock()
	delete(m.entries, sessionID)
	m.mu.Unlock()
	return nil
}
