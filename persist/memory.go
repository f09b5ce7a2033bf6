package persist

import (
	"container/list"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// MemoryIndex is an in-process key to value map for the Memory type.
// Concurrent computations of the same key are collapsed into one. A bounded
// index evicts the least recently used key once it is full.
type MemoryIndex struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List

	group singleflight.Group
	// gen counts refreshes per key; a computation only stores its value
	// when no refresh started after it.
	gen map[string]uint64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type memoryItem struct {
	key   string
	value any
}

// NewMemoryIndex creates an empty, unbounded index.
func NewMemoryIndex() *MemoryIndex {
	return NewBoundedMemoryIndex(0)
}

// NewBoundedMemoryIndex creates an empty index holding at most capacity
// keys. A capacity of zero or less means unbounded.
func NewBoundedMemoryIndex(capacity int) *MemoryIndex {
	return &MemoryIndex{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		gen:      make(map[string]uint64),
	}
}

var defaultMemory = NewMemoryIndex()

// DefaultMemoryIndex returns the process-wide index used by stores that do
// not configure their own.
func DefaultMemoryIndex() *MemoryIndex { return defaultMemory }

// Get returns the value stored for key.
func (m *MemoryIndex) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[key]; ok {
		m.lru.MoveToFront(el)
		return el.Value.(*memoryItem).value, true
	}
	return nil, false
}

// Set stores v for key.
func (m *MemoryIndex) Set(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, v)
}

func (m *MemoryIndex) set(key string, v any) {
	if el, ok := m.items[key]; ok {
		el.Value.(*memoryItem).value = v
		m.lru.MoveToFront(el)
		return
	}
	m.items[key] = m.lru.PushFront(&memoryItem{key: key, value: v})
	for m.capacity > 0 && m.lru.Len() > m.capacity {
		m.removeElement(m.lru.Back())
		m.evictions.Add(1)
	}
}

// Forget removes key.
func (m *MemoryIndex) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[key]; ok {
		m.removeElement(el)
	}
}

// Clear removes every key.
func (m *MemoryIndex) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.items)
	m.lru.Init()
}

// Len returns the number of stored keys.
func (m *MemoryIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryIndex) removeElement(el *list.Element) {
	m.lru.Remove(el)
	delete(m.items, el.Value.(*memoryItem).key)
}

// Do returns the value for key, computing it with fn on a miss. fn reports
// whether its value should be kept. cached is true when no computation ran
// for this caller.
func (m *MemoryIndex) Do(key string, fn func() (v any, keep bool, err error)) (v any, cached bool, err error) {
	if v, ok := m.Get(key); ok {
		m.hits.Add(1)
		return v, true, nil
	}
	m.misses.Add(1)

	v, err, _ = m.group.Do(key, func() (any, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		return m.compute(key, fn)
	})
	return v, false, err
}

// Refresh recomputes key with fn. It never joins a computation that was
// already in flight, so fn runs even while another caller is producing key.
// Later Do callers share the refreshed computation.
func (m *MemoryIndex) Refresh(key string, fn func() (v any, keep bool, err error)) (any, error) {
	m.mu.Lock()
	if el, ok := m.items[key]; ok {
		m.removeElement(el)
	}
	m.gen[key]++
	m.mu.Unlock()
	m.group.Forget(key)
	m.misses.Add(1)
	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.compute(key, fn)
	})
	return v, err
}

func (m *MemoryIndex) compute(key string, fn func() (any, bool, error)) (any, error) {
	m.mu.Lock()
	gen := m.gen[key]
	m.mu.Unlock()

	v, keep, err := fn()
	if err != nil {
		return nil, err
	}
	if keep {
		m.mu.Lock()
		if m.gen[key] == gen {
			m.set(key, v)
		}
		m.mu.Unlock()
	}
	return v, nil
}

// Stats returns hit and miss counts.
func (m *MemoryIndex) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

// Evictions returns how many keys were dropped to respect the capacity.
func (m *MemoryIndex) Evictions() int64 { return m.evictions.Load() }
