package join

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize bounds the number of cached reference lookups.
const DefaultMemoSize = 8192

type memoKey struct {
	variable string
	time     int
	point    int
}

type memoEntry struct {
	value float64
	err   error
}

// Memo caches reference lookups by (variable, time index, point index).
// Consecutive 1 Hz rows usually share a key, so most lookups hit. Failures
// are cached too so a broken key is queried once.
type Memo struct {
	cache        *lru.Cache[memoKey, memoEntry]
	hits, misses int
}

// NewMemo returns a memo holding at most size entries.
func NewMemo(size int) (*Memo, error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	c, err := lru.New[memoKey, memoEntry](size)
	if err != nil {
		return nil, err
	}
	return &Memo{cache: c}, nil
}

// Get returns the cached value for the key or calls fetch and stores its
// result.
func (m *Memo) Get(variable string, timeIdx, pointIdx int, fetch func() (float64, error)) (float64, error) {
	k := memoKey{variable: variable, time: timeIdx, point: pointIdx}
	if e, ok := m.cache.Get(k); ok {
		m.hits++
		return e.value, e.err
	}
	m.misses++
	v, err := fetch()
	m.cache.Add(k, memoEntry{value: v, err: err})
	return v, err
}

// Stats returns the hit and miss counts.
func (m *Memo) Stats() (hits, misses int) {
	return m.hits, m.misses
}

// Len returns the number of cached entries.
func (m *Memo) Len() int {
	return m.cache.Len()
}
