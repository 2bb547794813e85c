// Package cache is the keyed query cache shared by the read models and the
// push-event reconciler. Entries carry a freshness window (TTL); expired
// entries simply miss, which sends the next reader back to the server.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// NoExpiration marks an entry that never goes stale on its own.
const NoExpiration = gocache.NoExpiration

// Store is a process-wide keyed cache. It is safe for concurrent use; it is
// constructed explicitly and passed down rather than reached via a package
// variable, so the reconciler can be tested against its own store.
type Store struct {
	c *gocache.Cache
}

// NewStore creates an empty store. Expired entries are swept every minute.
func NewStore() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

// Get returns the cached value for key if present and fresh.
func (s *Store) Get(key string) (any, bool) {
	return s.c.Get(key)
}

// GetWithTTL returns the cached value along with its remaining freshness
// window. A zero duration means the entry does not expire.
func (s *Store) GetWithTTL(key string) (any, time.Duration, bool) {
	v, exp, ok := s.c.GetWithExpiration(key)
	if !ok {
		return nil, 0, false
	}
	if exp.IsZero() {
		return v, 0, true
	}
	remaining := time.Until(exp)
	if remaining <= 0 {
		return nil, 0, false
	}
	return v, remaining, true
}

// Set stores a value under key with the given freshness window.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.c.Set(key, value, ttl)
}

// Delete removes the entry for key, if any.
func (s *Store) Delete(key string) {
	s.c.Delete(key)
}

// KeysWithPrefix returns all live keys starting with prefix.
func (s *Store) KeysWithPrefix(prefix string) []string {
	var keys []string
	for k := range s.c.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// DeleteWithPrefix removes every entry whose key starts with prefix.
func (s *Store) DeleteWithPrefix(prefix string) {
	for _, k := range s.KeysWithPrefix(prefix) {
		s.c.Delete(k)
	}
}

// Flush drops everything. Used at logout.
func (s *Store) Flush() {
	s.c.Flush()
}
