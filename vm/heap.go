package vm

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Heap: reference stop-the-world mark-sweep collector
// ---------------------------------------------------------------------------

// HeapStats holds statistics from a single collection.
type HeapStats struct {
	Marked     int
	Swept      int
	Live       int
	BytesFreed int
	BytesLive  int
	Duration   time.Duration
	Timestamp  time.Time
}

// RootFunc reports the heap's roots to a visitor.
type RootFunc func(v Visitor)

// Heap tracks allocated objects and reclaims the ones that are no longer
// reachable from its roots. Reachability is discovered solely through
// each kind's Mark operation.
//
// The heap is not safe for concurrent use. Collection is stop-the-world:
// no object is mutated while it runs.
type Heap struct {
	objects  []Object
	retained map[Object]int // temporary roots, e.g. classes under construction
	roots    RootFunc

	bytes     int
	allocated int // bytes allocated since the last collection
	threshold int // 0 disables allocation-triggered collection

	collectCount uint64
	lastStats    *HeapStats
	collecting   bool
}

// NewHeap creates a heap whose permanent roots are reported by roots.
func NewHeap(roots RootFunc) *Heap {
	return &Heap{
		retained: make(map[Object]int),
		roots:    roots,
	}
}

// SetThreshold sets how many bytes may be allocated between collections
// before Alloc collects. Live bytes that survive a collection do not count
// toward the next one. Zero disables automatic collection.
func (h *Heap) SetThreshold(bytes int) {
	if bytes < 0 {
		bytes = 0
	}
	h.threshold = bytes
}

// Threshold returns the automatic collection threshold.
func (h *Heap) Threshold() int { return h.threshold }

// Alloc starts tracking obj and returns it. The object's type id must be
// registered; an unregistered id panics.
func (h *Heap) Alloc(obj Object) Object {
	hdr := obj.Header()
	if hdr.tracked {
		panic(fmt.Sprintf("vm: object %v allocated twice", obj))
	}
	size := SizeOf(obj) // resolves the type id

	if h.threshold > 0 && h.allocated >= h.threshold && !h.collecting {
		h.Collect()
	}

	hdr.tracked = true
	hdr.marked = false
	h.objects = append(h.objects, obj)
	h.bytes += size
	h.allocated += size
	return obj
}

// Retain adds obj to the temporary root set. Calls nest.
func (h *Heap) Retain(obj Object) {
	h.retained[obj]++
}

// Release undoes one Retain.
func (h *Heap) Release(obj Object) {
	if n := h.retained[obj]; n > 1 {
		h.retained[obj] = n - 1
	} else {
		delete(h.retained, obj)
	}
}

// Len returns the number of tracked objects.
func (h *Heap) Len() int { return len(h.objects) }

// Bytes returns the estimated live byte count as of the last allocation
// or collection.
func (h *Heap) Bytes() int { return h.bytes }

// Contains reports whether obj is tracked by h.
func (h *Heap) Contains(obj Object) bool {
	for _, o := range h.objects {
		if o == obj {
			return true
		}
	}
	return false
}

// CollectCount returns the number of collections performed.
func (h *Heap) CollectCount() uint64 { return h.collectCount }

// LastStats returns statistics from the most recent collection, or nil.
func (h *Heap) LastStats() *HeapStats { return h.lastStats }

// Collect marks everything reachable from the roots and frees the rest.
func (h *Heap) Collect() *HeapStats {
	h.collecting = true
	defer func() { h.collecting = false }()

	start := time.Now()
	stats := &HeapStats{Timestamp: start}

	// 1. Mark from permanent and temporary roots.
	m := &marker{}
	if h.roots != nil {
		h.roots(m)
	}
	for obj := range h.retained {
		m.MarkObject(obj)
	}
	m.drain()
	stats.Marked = m.count

	// 2. Sweep.
	live := h.objects[:0]
	bytes := 0
	for _, obj := range h.objects {
		hdr := obj.Header()
		if hdr.marked {
			hdr.marked = false
			live = append(live, obj)
			bytes += SizeOf(obj)
			continue
		}
		stats.BytesFreed += SizeOf(obj)
		stats.Swept++
		hdr.tracked = false
		FreeObject(obj)
	}
	for i := len(live); i < len(h.objects); i++ {
		h.objects[i] = nil
	}
	h.objects = live
	h.bytes = bytes
	h.allocated = 0

	stats.Live = len(live)
	stats.BytesLive = bytes
	stats.Duration = time.Since(start)

	h.collectCount++
	h.lastStats = stats

	log.Infof("collect: marked %d, swept %d, freed %d bytes, %d live", stats.Marked, stats.Swept, stats.BytesFreed, stats.Live)
	return stats
}

// marker is the Visitor used by the mark phase. It only traces objects
// owned by the heap; untracked objects (such as a class's owned name)
// are reclaimed by their owner.
type marker struct {
	gray  []Object
	count int
}

func (m *marker) MarkObject(obj Object) {
	if obj == nil {
		return
	}
	hdr := obj.Header()
	if !hdr.tracked || hdr.marked {
		return
	}
	hdr.marked = true
	m.count++
	m.gray = append(m.gray, obj)
}

func (m *marker) MarkValue(v Value) {
	if v.IsObject() {
		m.MarkObject(v.Object())
	}
}

func (m *marker) drain() {
	for len(m.gray) > 0 {
		obj := m.gray[len(m.gray)-1]
		m.gray = m.gray[:len(m.gray)-1]
		MarkObject(obj, m)
	}
}
