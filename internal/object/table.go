package object

import (
	"sync"
	"sync/atomic"
)

// Table is an in-memory Registry with a monotonic handle allocator.
//
// Handles start at 1 and are never reissued, so a destroyed object's handle
// stays dead forever.
//
// Thread-safety: all methods are safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	objects map[Handle]Object
	next    atomic.Uint64
}

// NewTable creates an empty registry.
func NewTable() *Table {
	return &Table{objects: make(map[Handle]Object)}
}

// Register stores obj and returns its new handle. Registering nil panics.
func (t *Table) Register(obj Object) Handle {
	if obj == nil {
		panic("object.Table: cannot register nil object")
	}
	h := Handle(t.next.Add(1))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.objects[h] = obj
	return h
}

// Destroy marks the handle dead. It returns false if the handle was not live.
func (t *Table) Destroy(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.objects[h]; !ok {
		return false
	}
	delete(t.objects, h)
	return true
}

// Lookup implements Registry.
func (t *Table) Lookup(h Handle) Object {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.objects[h]
}

// IsAlive implements Registry.
func (t *Table) IsAlive(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.objects[h]
	return ok
}

// Len returns the number of live objects.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.objects)
}

var _ Registry = (*Table)(nil)
