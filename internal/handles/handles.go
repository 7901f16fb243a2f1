// Package handles keeps Go values reachable while the host holds an opaque
// integer standing for them.
//
// A Table maps non-zero handles to values, like runtime/cgo.Handle but
// scoped to one owner so everything can be dropped at once. A Ledger groups
// handles by key so a whole group is released when the host discards what
// the group was registered against.
package handles

import (
	"sync"
	"sync/atomic"
)

// Handle is the integer given to the host. Zero is never issued.
type Handle uintptr

// Table pins values behind handles. Safe for concurrent use.
type Table struct {
	entries sync.Map // Handle -> any
	next    atomic.Uintptr
	live    atomic.Int64
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// New pins v and returns its handle.
func (t *Table) New(v any) Handle {
	h := Handle(t.next.Add(1))
	t.entries.Store(h, v)
	t.live.Add(1)
	return h
}

// Value returns the value behind h.
func (t *Table) Value(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}
	return t.entries.Load(h)
}

// Delete unpins h. Unknown handles are ignored.
func (t *Table) Delete(h Handle) {
	if _, loaded := t.entries.LoadAndDelete(h); loaded {
		t.live.Add(-1)
	}
}

// Len returns the number of pinned values.
func (t *Table) Len() int {
	return int(t.live.Load())
}

// Clear unpins every value.
func (t *Table) Clear() {
	t.entries.Range(func(k, _ any) bool {
		t.Delete(k.(Handle))
		return true
	})
}

// Ledger records which handles belong to which key.
type Ledger[K comparable] struct {
	table  *Table
	mu     sync.Mutex
	groups map[K][]Handle
}

// NewLedger creates a ledger releasing into table.
func NewLedger[K comparable](table *Table) *Ledger[K] {
	return &Ledger[K]{
		table:  table,
		groups: make(map[K][]Handle),
	}
}

// Pin stores v in the table and records the handle under key.
func (l *Ledger[K]) Pin(key K, v any) Handle {
	h := l.table.New(v)
	l.mu.Lock()
	l.groups[key] = append(l.groups[key], h)
	l.mu.Unlock()
	return h
}

// Release unpins every handle recorded under key and returns how many
// were released.
func (l *Ledger[K]) Release(key K) int {
	l.mu.Lock()
	hs := l.groups[key]
	delete(l.groups, key)
	l.mu.Unlock()

	for _, h := range hs {
		l.table.Delete(h)
	}
	return len(hs)
}

// ReleaseAll unpins every recorded handle.
func (l *Ledger[K]) ReleaseAll() int {
	l.mu.Lock()
	groups := l.groups
	l.groups = make(map[K][]Handle)
	l.mu.Unlock()

	n := 0
	for _, hs := range groups {
		for _, h := range hs {
			l.table.Delete(h)
		}
		n += len(hs)
	}
	return n
}

// Groups returns the number of keys holding handles.
func (l *Ledger[K]) Groups() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.groups)
}
