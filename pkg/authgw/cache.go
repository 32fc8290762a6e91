package authgw

import (
	"crypto/sha256"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

// Key is the fixed-width cache key: a SHA-256 digest of the full
// credential. The digest bounds memory and keeps raw secrets out of
// the cache without the collision risk of prefix truncation.
type Key [sha256.Size]byte

// KeyFor derives the cache key for a raw credential.
func KeyFor(raw string) Key {
	return sha256.Sum256([]byte(raw))
}

// Cache is the in-memory identity cache: a bounded LRU with a TTL
// layer on top. Expired entries are treated as absent and pruned
// lazily on access. Entries are process-local; they are lost on
// restart, which is acceptable since the store is the source of truth.
type Cache struct {
	lru *lru.Cache
	ttl time.Duration
}

type cacheEntry struct {
	identity *users.User
	storedAt time.Time
}

// NewCache creates an identity cache bounded to size entries.
func NewCache(size int, ttl time.Duration) (*Cache, error) {
	base, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: base, ttl: ttl}, nil
}

// Get returns the live identity for a key, ignoring expired entries.
func (c *Cache) Get(key Key, now time.Time) (*users.User, bool) {
	entryI, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	entry := entryI.(*cacheEntry)
	if now.Sub(entry.storedAt) > c.ttl {
		c.lru.Remove(key)
		c.gc(now) // Also prune other expired entries while we're at it.
		return nil, false
	}
	return entry.identity, true
}

// Add stores an identity under a key.
func (c *Cache) Add(key Key, identity *users.User, now time.Time) {
	c.lru.Add(key, &cacheEntry{identity: identity, storedAt: now})
}

// Remove evicts a single entry.
func (c *Cache) Remove(key Key) {
	c.lru.Remove(key)
}

// Purge evicts every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// gc removes expired entries from the cold end of the LRU.
func (c *Cache) gc(now time.Time) {
	for {
		key, entryI, ok := c.lru.GetOldest()
		if !ok {
			return
		}
		if now.Sub(entryI.(*cacheEntry).storedAt) <= c.ttl {
			return
		}
		c.lru.Remove(key)
	}
}
