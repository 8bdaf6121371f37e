package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/xxh3"
)

// StringObject is an immutable heap string.
type StringObject struct {
	ObjectHeader
	value string
}

// NewString creates a string object holding its own copy of s.
func NewString(s string) *StringObject {
	return &StringObject{
		ObjectHeader: newHeader(TypeString),
		value:        strings.Clone(s),
	}
}

// Value returns the Go string.
func (s *StringObject) Value() string { return s.value }

// String implements fmt.Stringer.
func (s *StringObject) String() string { return s.value }

// stringOps implements TypeOps for StringObject.
type stringOps struct{}

func (stringOps) Name() string { return "String" }

func (stringOps) Print(w io.Writer, obj Object) {
	fmt.Fprint(w, obj.(*StringObject).value)
}

func (stringOps) Mark(Object, Visitor) {}

func (stringOps) Free(obj Object) {
	obj.(*StringObject).value = ""
}

func (stringOps) Size(obj Object) int {
	return estimatedObjectBytes + estimatedStringHeaderBytes + len(obj.(*StringObject).value)
}

func (stringOps) Hash(obj Object) uint64 {
	return xxh3.HashString(obj.(*StringObject).value)
}

func (stringOps) Compare(a, b Object) int {
	return strings.Compare(a.(*StringObject).value, b.(*StringObject).value)
}

// Size estimates used by the TypeOps of the built-in kinds.
const (
	estimatedObjectBytes       = 16
	estimatedStringHeaderBytes = 16
	estimatedValueBytes        = 40
	estimatedMapBaseBytes      = 48
	estimatedMapEntryBytes     = 32
	estimatedSliceBaseBytes    = 24
	estimatedPointerBytes      = 8
)
