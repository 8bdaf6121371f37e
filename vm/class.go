package vm

import (
	"fmt"
	"io"
	"sort"
)

// ---------------------------------------------------------------------------
// Class: a heap object holding a name, methods and an ancestor order
// ---------------------------------------------------------------------------

// ClassState tracks where a class is in its lifecycle.
type ClassState uint8

const (
	// ClassBuilding: parents and methods may still be attached.
	ClassBuilding ClassState = iota
	// ClassLinearized: the linearization is cached; parents are frozen.
	ClassLinearized
	// ClassUnusable: linearization failed; the class cannot dispatch.
	ClassUnusable
	// ClassDestroyed: storage has been released.
	ClassDestroyed
)

func (s ClassState) String() string {
	switch s {
	case ClassBuilding:
		return "building"
	case ClassLinearized:
		return "linearized"
	case ClassUnusable:
		return "unusable"
	case ClassDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("ClassState(%d)", uint8(s))
	}
}

// Class represents a class with multiple inheritance.
//
// Parents, children and the linearization hold references only: a class
// never owns the classes it points at, and clearing those sequences never
// frees anything. The class exclusively owns its name and its method
// dictionary storage.
type Class struct {
	ObjectHeader

	name          *StringObject
	methods       map[string]Value
	parents       []*Class // declaration order
	children      []*Class // back-references, informational only
	linearization []*Class
	uid           uint64

	state ClassState
	err   *Error // cached linearization failure
}

// NewClass creates a class in the building state. The name is copied.
func NewClass(name string) *Class {
	return &Class{
		ObjectHeader: newHeader(TypeClass),
		name:         NewString(name),
		methods:      make(map[string]Value),
	}
}

// Name returns the class name, or "" once destroyed.
func (c *Class) Name() string {
	if c.name == nil {
		return ""
	}
	return c.name.Value()
}

// NameObject returns the owned name string.
func (c *Class) NameObject() *StringObject { return c.name }

// UID returns the identifier assigned at registration, or 0.
func (c *Class) UID() uint64 { return c.uid }

// State returns the lifecycle state.
func (c *Class) State() ClassState { return c.state }

// Usable reports whether the class has a cached linearization.
func (c *Class) Usable() bool { return c.state == ClassLinearized }

// Parents returns the declared parents in order.
func (c *Class) Parents() []*Class { return c.parents }

// Children returns classes that declared c as a parent.
func (c *Class) Children() []*Class { return c.children }

// Linearization returns the cached ancestor order, c first. It is empty
// until Linearize succeeds.
func (c *Class) Linearization() []*Class { return c.linearization }

// Superclass returns the first declared parent, or nil.
func (c *Class) Superclass() *Class {
	if len(c.parents) == 0 {
		return nil
	}
	return c.parents[0]
}

// String implements fmt.Stringer.
func (c *Class) String() string {
	return "@" + c.Name()
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// AddParent appends p to c's parents and records c as a child of p.
//
// Parents can only be attached while c is building, and p must already
// be linearized; this keeps every parent finalized before a child
// consumes its order.
func (c *Class) AddParent(p *Class) error {
	if c.state != ClassBuilding {
		return newError(KindFinalized, c.Name(), "cannot add parent %s to a %s class", p.Name(), c.state)
	}
	if p == c {
		return newError(KindDuplicateParent, c.Name(), "class cannot inherit from itself")
	}
	for _, existing := range c.parents {
		if existing == p {
			return newError(KindDuplicateParent, c.Name(), "parent %s declared twice", p.Name())
		}
	}
	if p.state != ClassLinearized {
		return newError(KindParentNotReady, c.Name(), "parent %s is %s", p.Name(), p.state)
	}

	c.parents = append(c.parents, p)
	p.children = append(p.children, c)
	return nil
}

// DefineMethod adds or replaces a method. Redefinition is legal at any
// point in the lifecycle; a destroyed class rejects it with
// KindUnusableClass.
func (c *Class) DefineMethod(name string, value Value) error {
	if c.state == ClassDestroyed {
		return newError(KindUnusableClass, c.Name(), "cannot define %s on a destroyed class", name)
	}
	if fn, ok := value.Object().(*Function); ok && fn.owner == nil {
		fn.owner = c
	}
	c.methods[name] = value
	return nil
}

// RemoveMethod deletes a directly declared method. Returns false if c did
// not declare it.
func (c *Class) RemoveMethod(name string) bool {
	if _, ok := c.methods[name]; !ok {
		return false
	}
	delete(c.methods, name)
	return true
}

// LocalMethod returns a method declared directly on c.
func (c *Class) LocalMethod(name string) (Value, bool) {
	v, ok := c.methods[name]
	return v, ok
}

// HasMethod returns true if c (not its ancestors) declares name.
func (c *Class) HasMethod(name string) bool {
	_, ok := c.methods[name]
	return ok
}

// Methods returns the names of directly declared methods, sorted.
func (c *Class) Methods() []string {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Destroy releases the name and method storage and clears every
// reference sequence. Referenced classes are untouched.
func (c *Class) Destroy() {
	if c.state == ClassDestroyed {
		return
	}
	if c.name != nil {
		FreeObject(c.name)
		c.name = nil
	}
	c.methods = nil
	c.parents = nil
	c.children = nil
	c.linearization = nil
	c.state = ClassDestroyed
}

// ---------------------------------------------------------------------------
// Hierarchy helpers
// ---------------------------------------------------------------------------

// IsSubclassOf returns true if other is c or one of its ancestors.
func (c *Class) IsSubclassOf(other *Class) bool {
	if c == other {
		return true
	}
	if c.state == ClassLinearized {
		for _, k := range c.linearization {
			if k == other {
				return true
			}
		}
		return false
	}
	for _, p := range c.parents {
		if p.IsSubclassOf(other) {
			return true
		}
	}
	return false
}

// IsSuperclassOf returns true if c is other or one of its ancestors.
func (c *Class) IsSuperclassOf(other *Class) bool {
	return other.IsSubclassOf(c)
}

// Depth returns the number of ancestors in the linearization.
func (c *Class) Depth() int {
	if len(c.linearization) == 0 {
		return 0
	}
	return len(c.linearization) - 1
}

// ---------------------------------------------------------------------------
// classOps implements TypeOps for Class
// ---------------------------------------------------------------------------

type classOps struct{}

func (classOps) Name() string { return "Class" }

func (classOps) Print(w io.Writer, obj Object) {
	fmt.Fprint(w, obj.(*Class).String())
}

// Mark reports the name, every method value, and every class in the
// parent, child and linearization sequences.
func (classOps) Mark(obj Object, v Visitor) {
	c := obj.(*Class)
	if c.name != nil {
		v.MarkObject(c.name)
	}
	for _, m := range c.methods {
		v.MarkValue(m)
	}
	for _, p := range c.parents {
		v.MarkObject(p)
	}
	for _, k := range c.children {
		v.MarkObject(k)
	}
	for _, k := range c.linearization {
		v.MarkObject(k)
	}
}

func (classOps) Free(obj Object) {
	obj.(*Class).Destroy()
}

func (classOps) Size(obj Object) int {
	c := obj.(*Class)
	refs := len(c.parents) + len(c.children) + len(c.linearization)
	return estimatedObjectBytes + estimatedMapBaseBytes + len(c.methods)*estimatedMapEntryBytes +
		3*estimatedSliceBaseBytes + refs*estimatedPointerBytes
}
