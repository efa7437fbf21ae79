package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoCache keeps recently read or written entries in memory in front of an
// underlying Cache. Entries still honor the caller's TTL against StoredAt,
// so the memo never serves anything the underlying cache would not.
type MemoCache struct {
	inner Cache
	lru   *expirable.LRU[string, Entry]
	now   func() time.Time
}

// NewMemoCache wraps inner with an LRU of size entries, each kept at most maxAge.
func NewMemoCache(inner Cache, size int, maxAge time.Duration) *MemoCache {
	return &MemoCache{
		inner: inner,
		lru:   expirable.NewLRU[string, Entry](size, nil, maxAge),
		now:   time.Now,
	}
}

// Get implements Cache.
func (m *MemoCache) Get(key string, ttl time.Duration) (Entry, bool) {
	if ttl <= 0 {
		return Entry{}, false
	}
	if e, ok := m.lru.Get(key); ok && m.now().Sub(e.StoredAt) < ttl {
		return e, true
	}
	e, ok := m.inner.Get(key, ttl)
	if ok {
		m.lru.Add(key, e)
	}
	return e, ok
}

// Set implements Cache.
func (m *MemoCache) Set(key string, value []byte) error {
	if err := m.inner.Set(key, value); err != nil {
		return err
	}
	m.lru.Add(key, Entry{Value: value, StoredAt: m.now()})
	return nil
}

// Len returns the number of memoized entries.
func (m *MemoCache) Len() int {
	return m.lru.Len()
}
