package storage

import "sync"

// MemoryStore is an in-process Store with the same quota semantics as the
// bbolt backend. It backs tests and ephemeral runs.
type MemoryStore struct {
	mu         sync.RWMutex
	values     map[string][]byte
	quotaBytes int64
}

// NewMemoryStore builds a MemoryStore bounded by quotaBytes.
func NewMemoryStore(quotaBytes int64) *MemoryStore {
	if quotaBytes <= 0 {
		quotaBytes = defaultQuotaBytes
	}
	return &MemoryStore{
		values:     make(map[string][]byte),
		quotaBytes: quotaBytes,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := int64(0)
	for k, v := range m.values {
		if k == key {
			continue
		}
		total += int64(len(v))
	}
	if total+int64(len(value)) > m.quotaBytes {
		return ErrQuotaExceeded
	}

	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Size(key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.values[key])), nil
}
