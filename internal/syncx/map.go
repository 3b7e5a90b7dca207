package syncx

import "sync"

// Map is a typed wrapper around sync.Map.
type Map[K comparable, V any] struct {
	inner sync.Map
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	raw, ok := m.inner.Load(key)
	if !ok {
		var zero V
		return zero, false
	}

	return raw.(V), true
}

func (m *Map[K, V]) Store(key K, value V) {
	m.inner.Store(key, value)
}

func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	raw, loaded := m.inner.LoadOrStore(key, value)
	return raw.(V), loaded
}

func (m *Map[K, V]) Delete(key K) {
	m.inner.Delete(key)
}

func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	m.inner.Range(func(rawKey, rawValue any) bool {
		return fn(rawKey.(K), rawValue.(V))
	})
}
