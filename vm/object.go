package vm

import (
	"io"
)

// Object is implemented by every heap-allocated runtime object.
//
// The set of object kinds is closed: each kind registers a TypeOps with
// the process-wide TypeRegistry at init time and stamps its TypeID into
// the ObjectHeader it embeds. All polymorphic operations (print, mark,
// free, size, hash, compare) are dispatched through that id.
type Object interface {
	Header() *ObjectHeader
}

// ObjectHeader is embedded at the start of every heap object.
type ObjectHeader struct {
	typ     TypeID
	marked  bool
	tracked bool // allocated through a Heap
	freed   bool
}

// newHeader stamps a header with a registered type id.
func newHeader(typ TypeID) ObjectHeader {
	return ObjectHeader{typ: typ}
}

// Header returns the header itself so embedding types satisfy Object.
func (h *ObjectHeader) Header() *ObjectHeader { return h }

// Type returns the type id the object was created with.
func (h *ObjectHeader) Type() TypeID { return h.typ }

// Marked reports whether the last mark phase reached the object.
func (h *ObjectHeader) Marked() bool { return h.marked }

// Freed reports whether the object's storage has been released.
func (h *ObjectHeader) Freed() bool { return h.freed }

// Visitor receives reachability edges from an object's mark operation.
// It is implemented by the collector.
type Visitor interface {
	MarkObject(obj Object)
	MarkValue(v Value)
}

// ---------------------------------------------------------------------------
// Dispatch through the process-wide type registry
// ---------------------------------------------------------------------------

// PrintObject writes the printed form of obj.
func PrintObject(w io.Writer, obj Object) {
	Types().Ops(obj.Header().typ).Print(w, obj)
}

// MarkObject reports every reference held by obj to the visitor.
func MarkObject(obj Object, v Visitor) {
	Types().Ops(obj.Header().typ).Mark(obj, v)
}

// FreeObject releases storage owned by obj. Freeing twice is a no-op.
func FreeObject(obj Object) {
	h := obj.Header()
	if h.freed {
		return
	}
	Types().Ops(h.typ).Free(obj)
	h.freed = true
}

// SizeOf returns the estimated number of bytes held by obj.
func SizeOf(obj Object) int {
	return Types().Ops(obj.Header().typ).Size(obj)
}

// HashObject hashes obj. The second result is false if the kind is not
// usable as a mapping key.
func HashObject(obj Object) (uint64, bool) {
	h, ok := Types().Ops(obj.Header().typ).(Hasher)
	if !ok {
		return 0, false
	}
	return h.Hash(obj), true
}

// CompareObjects orders two objects of the same kind. The second result
// is false if the kinds differ or the kind defines no ordering.
func CompareObjects(a, b Object) (int, bool) {
	ta, tb := a.Header().typ, b.Header().typ
	if ta != tb {
		return 0, false
	}
	c, ok := Types().Ops(ta).(Comparer)
	if !ok {
		return 0, false
	}
	return c.Compare(a, b), true
}
