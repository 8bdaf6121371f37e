package vm

// ---------------------------------------------------------------------------
// VM: heap plus class registry
// ---------------------------------------------------------------------------

// MissingMethodHook is the method a class may define to handle lookups
// that would otherwise miss.
const MissingMethodHook = "missingMethod"

// VM owns a heap and the registry of defined classes. It is not safe for
// concurrent use; the runtime drives it from a single thread.
type VM struct {
	Classes *ClassTable
	Heap    *Heap
}

// NewVM creates a VM. The first call seals the process-wide type
// registry.
func NewVM() *VM {
	Types().Seal()

	vm := &VM{
		Classes: NewClassTable(),
	}
	vm.Heap = NewHeap(vm.markRoots)
	return vm
}

// markRoots reports every registered class.
func (vm *VM) markRoots(v Visitor) {
	for _, c := range vm.Classes.All() {
		v.MarkObject(c)
	}
}

// ---------------------------------------------------------------------------
// Class declaration lifecycle
// ---------------------------------------------------------------------------

// BeginClass allocates a class and keeps it alive until FinishClass.
// Parents and methods are attached to the returned class by the caller.
func (vm *VM) BeginClass(name string) *Class {
	c := NewClass(name)
	vm.Heap.Alloc(c)
	vm.Heap.Retain(c)
	return c
}

// FinishClass linearizes c and, on success, registers it. On failure the
// class is unlinked from its parents and left for the collector; it is
// never registered.
func (vm *VM) FinishClass(c *Class) error {
	if err := vm.FinishUnregistered(c); err != nil {
		return err
	}
	if old := vm.Classes.Register(c); old != nil {
		log.Noticef("class %s redefined", c.Name())
	}
	log.Debugf("defined class %s (uid %d) with linearization %v", c.Name(), c.uid, c.linearization)
	return nil
}

// FinishUnregistered linearizes c without publishing it in the class
// table. The class then lives only as long as something reachable refers
// to it, such as a child that inherits from it. Restoring a class whose
// name was since taken by a redefinition goes through here.
func (vm *VM) FinishUnregistered(c *Class) error {
	defer vm.Heap.Release(c)

	if err := c.Linearize(); err != nil {
		c.detach()
		return err
	}
	return nil
}

// AbandonClass drops a class obtained from BeginClass without
// registering it.
func (vm *VM) AbandonClass(c *Class) {
	c.detach()
	vm.Heap.Release(c)
}

// DefineClass declares a class with the named parents, in order, and
// linearizes it. Every parent must already be defined.
func (vm *VM) DefineClass(name string, parents ...string) (*Class, error) {
	resolved := make([]*Class, len(parents))
	for i, pname := range parents {
		p := vm.Classes.Lookup(pname)
		if p == nil {
			return nil, newError(KindUnknownClass, name, "parent %s is not defined", pname)
		}
		resolved[i] = p
	}

	c := vm.BeginClass(name)
	for _, p := range resolved {
		if err := c.AddParent(p); err != nil {
			vm.AbandonClass(c)
			return nil, err
		}
	}
	if err := vm.FinishClass(c); err != nil {
		return nil, err
	}
	return c, nil
}

// detach removes c from its parents' child lists so a failed
// definition does not stay reachable through them.
func (c *Class) detach() {
	for _, p := range c.parents {
		p.children = removeClass(p.children, c)
	}
	c.parents = nil
}

// LookupClass finds a registered class.
func (vm *VM) LookupClass(name string) (*Class, error) {
	c := vm.Classes.Lookup(name)
	if c == nil {
		return nil, newError(KindUnknownClass, name, "class is not defined")
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Methods and instances
// ---------------------------------------------------------------------------

// DefineMethod allocates a function for body and installs it on c.
// A destroyed class rejects the definition with KindUnusableClass.
func (vm *VM) DefineMethod(c *Class, name string, arity int, body any) (*Function, error) {
	if c.state == ClassDestroyed {
		return nil, newError(KindUnusableClass, c.Name(), "cannot define %s on a destroyed class", name)
	}
	fn := NewFunction(name, arity, body)
	vm.Heap.Alloc(fn)
	if err := c.DefineMethod(name, FromObject(fn)); err != nil {
		return nil, err
	}
	return fn, nil
}

// NewInstance allocates an instance of c.
func (vm *VM) NewInstance(c *Class) (*Instance, error) {
	if !c.Usable() {
		return nil, newError(KindUnusableClass, c.Name(), "cannot instantiate a %s class", c.state)
	}
	o := newInstance(c)
	vm.Heap.Alloc(o)
	return o, nil
}

// Resolve looks up name on c. On a miss it falls back to c's
// MissingMethodHook; if that is absent too, it returns an error of kind
// KindNoSuchMethod.
func (vm *VM) Resolve(c *Class, name string) (Value, error) {
	if !c.Usable() {
		return Nil, newError(KindUnusableClass, c.Name(), "cannot dispatch %s on a %s class", name, c.state)
	}
	if m, ok := c.Lookup(name); ok {
		return m, nil
	}
	if m, ok := c.Lookup(MissingMethodHook); ok {
		return m, nil
	}
	return Nil, newError(KindNoSuchMethod, c.Name(), "%s does not understand %s", c.Name(), name)
}

// Send resolves name on the receiver's class.
func (vm *VM) Send(receiver *Instance, name string) (Value, error) {
	return vm.Resolve(receiver.Class(), name)
}

// SendSuper resolves a super call made from a method defined on
// defining, for receiver.
func (vm *VM) SendSuper(defining *Class, receiver *Instance, name string) (Value, error) {
	if m, ok := SuperLookup(defining, receiver.Class(), name); ok {
		return m, nil
	}
	return Nil, newError(KindNoSuchMethod, receiver.Class().Name(), "no %s after %s", name, defining.Name())
}

// Collect runs a full collection with every registered class as a root.
func (vm *VM) Collect() *HeapStats {
	return vm.Heap.Collect()
}
