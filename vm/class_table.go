package vm

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// ClassTable: registry of defined classes
// ---------------------------------------------------------------------------

// nextClassUID is shared by every table so uids are process-unique.
var nextClassUID atomic.Uint64

// ClassTable maps class names to classes and remembers registration
// order, which is always parents-before-children.
// It's safe for concurrent readers.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
	order   []*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[string]*Class),
	}
}

// Register adds a class to the table and assigns its uid if it has none.
// Returns the previous class with this name, or nil.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if c.uid == 0 {
		c.uid = nextClassUID.Add(1)
	}

	name := c.Name()
	old := ct.classes[name]
	if old != nil {
		ct.removeFromOrder(old)
	}
	ct.classes[name] = c
	ct.order = append(ct.order, c)
	return old
}

// Unregister removes the class registered under name and returns it.
func (ct *ClassTable) Unregister(name string) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	c := ct.classes[name]
	if c == nil {
		return nil
	}
	delete(ct.classes, name)
	ct.removeFromOrder(c)
	return c
}

func (ct *ClassTable) removeFromOrder(c *Class) {
	for i, k := range ct.order {
		if k == c {
			ct.order = append(ct.order[:i], ct.order[i+1:]...)
			return
		}
	}
}

// Lookup finds a class by name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// Has returns true if a class with this name is registered.
func (ct *ClassTable) Has(name string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.classes[name]
	return ok
}

// All returns all registered classes in registration order.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*Class, len(ct.order))
	copy(result, ct.order)
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}
