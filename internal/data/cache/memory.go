package cache

import (
	"bytes"
	"container/list"
	"sync"
)

const DefaultMemoryCapacity = 4096

type memoryEntry struct {
	key   Key
	hash  string
	value []byte
}

// Memory keeps at most capacity entries for the lifetime of the process and
// evicts the least recently restored or stored one when full.
type Memory struct {
	mu       sync.Mutex
	capacity int
	entries  map[Key]*list.Element
	recency  *list.List // front is most recent
}

var _ Driver = (*Memory)(nil)

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{
		capacity: capacity,
		entries:  make(map[Key]*list.Element),
		recency:  list.New(),
	}
}

func (m *Memory) Store(key Key, value []byte, hash string) error {
	entry := &memoryEntry{key: key, hash: hash, value: bytes.Clone(value)}

	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		el.Value = entry
		m.recency.MoveToFront(el)
		return nil
	}
	for m.recency.Len() >= m.capacity {
		oldest := m.recency.Back()
		m.recency.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
	m.entries[key] = m.recency.PushFront(entry)
	return nil
}

func (m *Memory) Restore(key Key, hash string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	entry := el.Value.(*memoryEntry)
	if entry.hash != hash {
		return nil, ErrMiss
	}
	m.recency.MoveToFront(el)
	return bytes.Clone(entry.value), nil
}

func (m *Memory) Remove(pattern string) error {
	g, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, el := range m.entries {
		if g.Match(key.String()) {
			m.recency.Remove(el)
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[Key]*list.Element)
	m.recency.Init()
	return nil
}
