package vm

import (
	"fmt"
	"io"
)

// ---------------------------------------------------------------------------
// Function: a method body as stored in a class's method dictionary
// ---------------------------------------------------------------------------

// Function wraps a method body produced by the compiled-code
// representation. The object model never interprets Body; it only needs
// to know which heap values the function keeps alive.
type Function struct {
	ObjectHeader

	Name     string
	Arity    int     // number of arguments, not including self
	Literals []Value // constant pool; traced by the collector
	Body     any     // opaque compiled body

	owner *Class // defining class, set by DefineMethod
}

// NewFunction creates a function object.
func NewFunction(name string, arity int, body any) *Function {
	return &Function{
		ObjectHeader: newHeader(TypeFunction),
		Name:         name,
		Arity:        arity,
		Body:         body,
	}
}

// Owner returns the class the function was defined on, or nil for
// detached functions.
func (f *Function) Owner() *Class { return f.owner }

// String implements fmt.Stringer.
func (f *Function) String() string {
	if f.owner != nil {
		return fmt.Sprintf("<fn %s.%s>", f.owner.Name(), f.Name)
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}

// functionOps implements TypeOps for Function.
type functionOps struct{}

func (functionOps) Name() string { return "Function" }

func (functionOps) Print(w io.Writer, obj Object) {
	fmt.Fprint(w, obj.(*Function).String())
}

func (functionOps) Mark(obj Object, v Visitor) {
	f := obj.(*Function)
	for _, lit := range f.Literals {
		v.MarkValue(lit)
	}
	if f.owner != nil {
		v.MarkObject(f.owner)
	}
}

func (functionOps) Free(obj Object) {
	f := obj.(*Function)
	f.Literals = nil
	f.Body = nil
	f.owner = nil
}

func (functionOps) Size(obj Object) int {
	f := obj.(*Function)
	return estimatedObjectBytes + estimatedStringHeaderBytes + len(f.Name) +
		estimatedSliceBaseBytes + len(f.Literals)*estimatedValueBytes
}
