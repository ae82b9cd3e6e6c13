// Package kv provides the small durable key-value storage used for client
// state such as the active search filter, the signed-in tokens and the
// post-login redirect. Operations are synchronous and best-effort.
package kv

import "sync"

// Store is a string key-value store. Get reports ok=false for absent keys.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStore keeps values in a map. It does not survive restarts and is
// meant for tests and ephemeral sessions.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{m: map[string]string{}} }

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

// Prefixed namespaces every key of an underlying store.
type Prefixed struct {
	Prefix string
	Store  Store
}

func (p Prefixed) Get(key string) (string, bool, error) { return p.Store.Get(p.Prefix + key) }
func (p Prefixed) Set(key, value string) error          { return p.Store.Set(p.Prefix+key, value) }
func (p Prefixed) Remove(key string) error              { return p.Store.Remove(p.Prefix + key) }
