package navigation

import "github.com/satishbabariya/relq/internal/core/query/algebra"

type memoKey struct {
	from algebra.TableSource
	name string
}

// Memo remembers what a navigation from a table expanded to, so that two
// accesses of the same navigation share one join.
type Memo[V any] struct {
	entries map[memoKey]V
}

// NewMemo creates an empty memo.
func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{entries: make(map[memoKey]V)}
}

// Get returns the expansion of navigation name from table from.
func (m *Memo[V]) Get(from algebra.TableSource, name string) (V, bool) {
	v, ok := m.entries[memoKey{from, name}]
	return v, ok
}

// Put records the expansion of navigation name from table from.
func (m *Memo[V]) Put(from algebra.TableSource, name string, v V) {
	m.entries[memoKey{from, name}] = v
}

// Len returns the number of recorded expansions.
func (m *Memo[V]) Len() int {
	return len(m.entries)
}
