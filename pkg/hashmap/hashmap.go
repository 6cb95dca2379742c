// Package hashmap is a string-keyed hash map with separate chaining whose
// bucket array grows and shrinks with the load factor.
package hashmap

import (
	"hash/fnv"
	"sort"
)

const (
	InitialCapacity = 8
	MaxCapacity     = 1 << 20

	maxLoadFactor = 0.75
	minLoadFactor = 0.25
)

type entry[V any] struct {
	key   string
	value V
	next  *entry[V]
}

// Map is not safe for concurrent use.
type Map[V any] struct {
	buckets []*entry[V]
	size    int
}

func New[V any]() *Map[V] {
	return &Map[V]{buckets: make([]*entry[V], InitialCapacity)}
}

// index derives a bucket from the FNV-1a hash; the capacity is always a power of two.
func index(key string, capacity int) int {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int(h.Sum64() & uint64(capacity-1))
}

func (m *Map[V]) Len() int      { return m.size }
func (m *Map[V]) Empty() bool   { return m.size == 0 }
func (m *Map[V]) Capacity() int { return len(m.buckets) }

func (m *Map[V]) loadFactor() float64 {
	return float64(m.size) / float64(len(m.buckets))
}

// Insert stores value under key, replacing any previous value.
// It reports whether the key was new.
func (m *Map[V]) Insert(key string, value V) bool {
	i := index(key, len(m.buckets))
	for e := m.buckets[i]; e != nil; e = e.next {
		if e.key == key {
			e.value = value
			return false
		}
	}
	m.buckets[i] = &entry[V]{key: key, value: value, next: m.buckets[i]}
	m.size++

	if m.loadFactor() >= maxLoadFactor && len(m.buckets)*2 <= MaxCapacity {
		m.rehash(len(m.buckets) * 2)
	}
	return true
}

// Find returns the value stored under key.
func (m *Map[V]) Find(key string) (V, bool) {
	for e := m.buckets[index(key, len(m.buckets))]; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Erase removes key and reports whether it was present.
func (m *Map[V]) Erase(key string) bool {
	i := index(key, len(m.buckets))
	link := &m.buckets[i]
	for e := *link; e != nil; e = e.next {
		if e.key == key {
			*link = e.next
			m.size--
			if m.loadFactor() <= minLoadFactor && len(m.buckets)/2 >= InitialCapacity {
				m.rehash(len(m.buckets) / 2)
			}
			return true
		}
		link = &e.next
	}
	return false
}

func (m *Map[V]) rehash(capacity int) {
	buckets := make([]*entry[V], capacity)
	for _, e := range m.buckets {
		for e != nil {
			next := e.next
			i := index(e.key, capacity)
			e.next = buckets[i]
			buckets[i] = e
			e = next
		}
	}
	m.buckets = buckets
}

// Keys returns every key in sorted order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.size)
	for _, e := range m.buckets {
		for ; e != nil; e = e.next {
			keys = append(keys, e.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clear drops every entry and returns to the initial capacity.
func (m *Map[V]) Clear() {
	m.buckets = make([]*entry[V], InitialCapacity)
	m.size = 0
}
