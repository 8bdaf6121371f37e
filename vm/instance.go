package vm

import (
	"fmt"
	"io"
	"sort"
)

// Instance is an object whose behavior comes from its class.
type Instance struct {
	ObjectHeader
	class  *Class
	fields map[string]Value
}

// newInstance creates an instance of a linearized class.
func newInstance(c *Class) *Instance {
	return &Instance{
		ObjectHeader: newHeader(TypeInstance),
		class:        c,
		fields:       make(map[string]Value),
	}
}

// Class returns the instance's runtime class.
func (o *Instance) Class() *Class { return o.class }

// Get returns a field value, or Nil if unset.
func (o *Instance) Get(name string) Value {
	return o.fields[name]
}

// Set assigns a field.
func (o *Instance) Set(name string, v Value) {
	o.fields[name] = v
}

// String implements fmt.Stringer.
func (o *Instance) String() string {
	if o.class == nil {
		return "<instance>"
	}
	return fmt.Sprintf("<%s instance>", o.class.Name())
}

type instanceOps struct{}

func (instanceOps) Name() string { return "Instance" }

func (instanceOps) Print(w io.Writer, obj Object) {
	o := obj.(*Instance)
	fmt.Fprint(w, o.String())
	if len(o.fields) == 0 {
		return
	}
	names := make([]string, 0, len(o.fields))
	for name := range o.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprint(w, " {")
	for i, name := range names {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprintf(w, " %s: %v", name, o.fields[name])
	}
	fmt.Fprint(w, " }")
}

func (instanceOps) Mark(obj Object, v Visitor) {
	o := obj.(*Instance)
	if o.class != nil {
		v.MarkObject(o.class)
	}
	for _, f := range o.fields {
		v.MarkValue(f)
	}
}

func (instanceOps) Free(obj Object) {
	o := obj.(*Instance)
	o.class = nil
	o.fields = nil
}

func (instanceOps) Size(obj Object) int {
	return estimatedObjectBytes + estimatedMapBaseBytes +
		len(obj.(*Instance).fields)*(estimatedMapEntryBytes+estimatedValueBytes)
}
