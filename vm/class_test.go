package vm

import (
	"errors"
	"testing"
)

// recordingVisitor collects every edge reported by a mark operation.
type recordingVisitor struct {
	objects []Object
	values  []Value
}

func (r *recordingVisitor) MarkObject(obj Object) { r.objects = append(r.objects, obj) }
func (r *recordingVisitor) MarkValue(v Value)     { r.values = append(r.values, v) }

func (r *recordingVisitor) sawObject(obj Object) bool {
	for _, o := range r.objects {
		if o == obj {
			return true
		}
	}
	return false
}

func (r *recordingVisitor) sawValue(v Value) bool {
	for _, x := range r.values {
		if x.Equal(v) {
			return true
		}
	}
	return false
}

// linearized builds and linearizes a class from already-linearized parents.
func linearized(t *testing.T, name string, parents ...*Class) *Class {
	t.Helper()
	c := NewClass(name)
	for _, p := range parents {
		if err := c.AddParent(p); err != nil {
			t.Fatalf("%s.AddParent(%s): %v", name, p.Name(), err)
		}
	}
	if err := c.Linearize(); err != nil {
		t.Fatalf("%s.Linearize(): %v", name, err)
	}
	return c
}

// ---------------------------------------------------------------------------
// Class creation tests
// ---------------------------------------------------------------------------

func TestNewClass(t *testing.T) {
	c := NewClass("Object")
	if c == nil {
		t.Fatal("NewClass returned nil")
	}
	if c.Name() != "Object" {
		t.Errorf("Name() = %q, want %q", c.Name(), "Object")
	}
	if c.UID() != 0 {
		t.Errorf("UID() = %d, want 0 before registration", c.UID())
	}
	if c.Superclass() != nil {
		t.Error("new class should have no superclass")
	}
	if len(c.Parents()) != 0 || len(c.Children()) != 0 || len(c.Linearization()) != 0 {
		t.Error("new class should start with empty sequences")
	}
	if len(c.Methods()) != 0 {
		t.Error("new class should have no methods")
	}
	if c.State() != ClassBuilding {
		t.Errorf("State() = %v, want %v", c.State(), ClassBuilding)
	}
	if c.Header().Type() != TypeClass {
		t.Errorf("type id = %d, want %d", c.Header().Type(), TypeClass)
	}
}

func TestNewClassOwnsItsName(t *testing.T) {
	buf := []byte("Point")
	c := NewClass(string(buf))
	buf[0] = 'J'
	if c.Name() != "Point" {
		t.Errorf("Name() = %q after caller mutation, want %q", c.Name(), "Point")
	}
}

// ---------------------------------------------------------------------------
// Parents and children
// ---------------------------------------------------------------------------

func TestAddParentRecordsBackReference(t *testing.T) {
	base := linearized(t, "Base")
	left := NewClass("Left")
	if err := left.AddParent(base); err != nil {
		t.Fatalf("AddParent: %v", err)
	}

	if left.Superclass() != base {
		t.Error("Superclass() should be the first declared parent")
	}
	if len(base.Children()) != 1 || base.Children()[0] != left {
		t.Errorf("base.Children() = %v, want [@Left]", base.Children())
	}
}

func TestAddParentPreservesDeclarationOrder(t *testing.T) {
	x, y, z := linearized(t, "X"), linearized(t, "Y"), linearized(t, "Z")
	c := linearized(t, "C", z, x, y)

	got := classNames(c.Parents())
	want := []string{"Z", "X", "Y"}
	if !equalNames(got, want) {
		t.Errorf("Parents() = %v, want %v", got, want)
	}
}

func TestAddParentErrors(t *testing.T) {
	base := linearized(t, "Base")

	t.Run("after linearization", func(t *testing.T) {
		c := linearized(t, "C")
		err := c.AddParent(base)
		if !errors.Is(err, ErrFinalized) {
			t.Errorf("AddParent after Linearize = %v, want ErrFinalized", err)
		}
		if len(c.Parents()) != 0 {
			t.Error("rejected parent should not be attached")
		}
	})

	t.Run("parent not linearized", func(t *testing.T) {
		c := NewClass("C")
		err := c.AddParent(NewClass("Pending"))
		if !errors.Is(err, ErrParentNotReady) {
			t.Errorf("AddParent(pending) = %v, want ErrParentNotReady", err)
		}
	})

	t.Run("self", func(t *testing.T) {
		c := NewClass("C")
		if err := c.AddParent(c); !errors.Is(err, ErrDuplicateParent) {
			t.Errorf("AddParent(self) = %v, want ErrDuplicateParent", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		c := NewClass("C")
		if err := c.AddParent(base); err != nil {
			t.Fatal(err)
		}
		if err := c.AddParent(base); !errors.Is(err, ErrDuplicateParent) {
			t.Errorf("second AddParent(base) = %v, want ErrDuplicateParent", err)
		}
	})
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

func TestDefineMethodOverwrites(t *testing.T) {
	c := NewClass("C")
	c.DefineMethod("foo", FromInt(1))
	c.DefineMethod("foo", FromInt(2))

	v, ok := c.LocalMethod("foo")
	if !ok || v.Int() != 2 {
		t.Errorf("LocalMethod(foo) = %v, %v, want 2, true", v, ok)
	}
	if len(c.Methods()) != 1 {
		t.Errorf("Methods() = %v, want one entry", c.Methods())
	}
}

func TestDefineMethodSetsFunctionOwner(t *testing.T) {
	c := NewClass("C")
	fn := NewFunction("foo", 0, nil)
	c.DefineMethod("foo", FromObject(fn))
	if fn.Owner() != c {
		t.Error("DefineMethod should record the defining class")
	}
	if fn.String() != "<fn C.foo>" {
		t.Errorf("String() = %q, want %q", fn.String(), "<fn C.foo>")
	}
}

func TestRemoveMethod(t *testing.T) {
	c := NewClass("C")
	c.DefineMethod("foo", FromInt(1))
	if !c.RemoveMethod("foo") {
		t.Error("RemoveMethod(foo) = false, want true")
	}
	if c.RemoveMethod("foo") {
		t.Error("second RemoveMethod(foo) = true, want false")
	}
	if c.HasMethod("foo") {
		t.Error("foo should be gone")
	}
}

func TestMethodsSorted(t *testing.T) {
	c := NewClass("C")
	for _, name := range []string{"zeta", "alpha", "mid"} {
		c.DefineMethod(name, Nil)
	}
	if got := c.Methods(); !equalNames(got, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("Methods() = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Destroy
// ---------------------------------------------------------------------------

func TestDestroyLeavesReferencedClassesIntact(t *testing.T) {
	base := linearized(t, "Base")
	child := linearized(t, "Child", base)
	child.DefineMethod("foo", FromInt(1))
	name := child.NameObject()

	child.Destroy()

	if child.State() != ClassDestroyed {
		t.Errorf("State() = %v, want destroyed", child.State())
	}
	if !name.Freed() {
		t.Error("Destroy should free the owned name")
	}
	if len(child.Parents()) != 0 || len(child.Linearization()) != 0 {
		t.Error("Destroy should clear reference sequences")
	}
	if base.State() != ClassLinearized || base.Name() != "Base" {
		t.Error("Destroy must not touch referenced classes")
	}

	child.Destroy() // idempotent
	if err := child.DefineMethod("bar", FromInt(2)); !errors.Is(err, ErrUnusableClass) {
		t.Errorf("DefineMethod on a destroyed class = %v, want ErrUnusableClass", err)
	}
	if child.HasMethod("bar") {
		t.Error("a destroyed class must not gain methods")
	}
}

// ---------------------------------------------------------------------------
// Mark contract
// ---------------------------------------------------------------------------

func TestClassMarkReportsEveryEdge(t *testing.T) {
	base := linearized(t, "Base")
	mid := linearized(t, "Mid", base)
	leaf := linearized(t, "Leaf", mid)

	fn := NewFunction("foo", 0, nil)
	mid.DefineMethod("foo", FromObject(fn))
	mid.DefineMethod("answer", FromInt(42))

	v := &recordingVisitor{}
	MarkObject(mid, v)

	if !v.sawObject(mid.NameObject()) {
		t.Error("mark should report the name")
	}
	if !v.sawValue(FromObject(fn)) || !v.sawValue(FromInt(42)) {
		t.Error("mark should report every method value")
	}
	if !v.sawObject(base) {
		t.Error("mark should report parents")
	}
	if !v.sawObject(leaf) {
		t.Error("mark should report children")
	}
	if !v.sawObject(mid) {
		t.Error("mark should report the linearization (which starts with the class)")
	}
}

func TestInstanceMarkReportsClassAndFields(t *testing.T) {
	c := linearized(t, "Point")
	o := newInstance(c)
	s := NewString("label")
	o.Set("label", FromObject(s))

	v := &recordingVisitor{}
	MarkObject(o, v)

	if !v.sawObject(c) {
		t.Error("instance mark should report its class")
	}
	if !v.sawValue(FromObject(s)) {
		t.Error("instance mark should report field values")
	}
}

// ---------------------------------------------------------------------------
// Hierarchy helpers
// ---------------------------------------------------------------------------

func TestIsSubclassOf(t *testing.T) {
	base := linearized(t, "Base")
	left := linearized(t, "Left", base)
	other := linearized(t, "Other")

	if !left.IsSubclassOf(base) || !left.IsSubclassOf(left) {
		t.Error("Left should be a subclass of Base and itself")
	}
	if left.IsSubclassOf(other) {
		t.Error("Left should not be a subclass of Other")
	}
	if !base.IsSuperclassOf(left) {
		t.Error("Base should be a superclass of Left")
	}
	if left.Depth() != 1 {
		t.Errorf("Depth() = %d, want 1", left.Depth())
	}
}

func TestClassStateString(t *testing.T) {
	if ClassUnusable.String() != "unusable" {
		t.Errorf("ClassUnusable.String() = %q", ClassUnusable.String())
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func classNames(cs []*Class) []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name()
	}
	return names
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
