package vm

import (
	"fmt"
	"strconv"
)

// Value represents a runtime value as seen by the object model.
//
// The object model only needs to distinguish heap references from
// immediates: immediates are never traced, heap references are reported
// to the collector through Visitor.MarkValue. Values are small and are
// passed by value.
type Value struct {
	kind ValueKind
	bits int64
	num  float64
	obj  Object
}

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueNil ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueObject
)

// Nil is the zero Value.
var Nil = Value{}

// Pre-defined booleans
var (
	True  = Value{kind: ValueBool, bits: 1}
	False = Value{kind: ValueBool}
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// FromBool converts a Go bool to a Value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromInt creates an integer Value.
func FromInt(n int64) Value {
	return Value{kind: ValueInt, bits: n}
}

// FromFloat creates a float Value.
func FromFloat(f float64) Value {
	return Value{kind: ValueFloat, num: f}
}

// FromObject wraps a heap object. A nil object yields Nil.
func FromObject(obj Object) Value {
	if obj == nil {
		return Nil
	}
	return Value{kind: ValueObject, obj: obj}
}

// ---------------------------------------------------------------------------
// Type checking and extraction
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNil returns true if v is Nil.
func (v Value) IsNil() bool { return v.kind == ValueNil }

// IsObject returns true if v references a heap object.
func (v Value) IsObject() bool { return v.kind == ValueObject }

// Object returns the referenced heap object, or nil for immediates.
func (v Value) Object() Object {
	if v.kind != ValueObject {
		return nil
	}
	return v.obj
}

// Int returns the integer payload. Panics if v is not an integer.
func (v Value) Int() int64 {
	if v.kind != ValueInt {
		panic("Value.Int: not an integer")
	}
	return v.bits
}

// Float returns the float payload. Panics if v is not a float.
func (v Value) Float() float64 {
	if v.kind != ValueFloat {
		panic("Value.Float: not a float")
	}
	return v.num
}

// Bool returns the boolean payload. Panics if v is not a boolean.
func (v Value) Bool() bool {
	if v.kind != ValueBool {
		panic("Value.Bool: not a boolean")
	}
	return v.bits != 0
}

// Equal reports identity equality: immediates compare by payload,
// objects compare by reference.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case ValueNil:
		return true
	case ValueBool, ValueInt:
		return v.bits == other.bits
	case ValueFloat:
		return v.num == other.num
	default:
		return v.obj == other.obj
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case ValueNil:
		return "nil"
	case ValueBool:
		return strconv.FormatBool(v.bits != 0)
	case ValueInt:
		return strconv.FormatInt(v.bits, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	default:
		return fmt.Sprint(v.obj)
	}
}
