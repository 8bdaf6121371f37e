package vm

import (
	"fmt"
	"io"
	"sync"
)

// TypeID identifies a registered object kind. Ids are dense, start at 1,
// and are stable for the life of the process.
type TypeID uint16

// TypeOps is the operation table for one object kind.
type TypeOps interface {
	Name() string
	Print(w io.Writer, obj Object)
	Mark(obj Object, v Visitor)
	Free(obj Object)
	Size(obj Object) int
}

// Hasher is implemented by TypeOps of kinds usable as mapping keys.
type Hasher interface {
	Hash(obj Object) uint64
}

// Comparer is implemented by TypeOps of kinds with a total order.
type Comparer interface {
	Compare(a, b Object) int
}

// ---------------------------------------------------------------------------
// TypeRegistry
// ---------------------------------------------------------------------------

// TypeRegistry maps type ids to operation tables.
//
// Registration is append-only and happens during process startup. Once
// Seal is called the registry is read-only; registering afterwards, or
// resolving an id that was never registered, is an internal invariant
// violation and panics.
type TypeRegistry struct {
	mu     sync.RWMutex
	ops    []TypeOps // index 0 is reserved
	sealed bool
}

// NewTypeRegistry creates an empty, unsealed registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{ops: []TypeOps{nil}}
}

// RegisterType appends ops and returns its id.
func (r *TypeRegistry) RegisterType(ops TypeOps) TypeID {
	if ops == nil {
		panic("vm: RegisterType with nil ops")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("vm: RegisterType(%s) after registry was sealed", ops.Name()))
	}
	r.ops = append(r.ops, ops)
	return TypeID(len(r.ops) - 1)
}

// Seal makes the registry read-only. Sealing twice is harmless.
func (r *TypeRegistry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *TypeRegistry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Ops returns the operation table for id.
func (r *TypeRegistry) Ops(id TypeID) TypeOps {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == 0 || int(id) >= len(r.ops) {
		panic(fmt.Sprintf("vm: unregistered type id %d", id))
	}
	return r.ops[id]
}

// Len returns the number of registered kinds.
func (r *TypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops) - 1
}

// ---------------------------------------------------------------------------
// Process-wide registry
// ---------------------------------------------------------------------------

var types = NewTypeRegistry()

// Types returns the process-wide registry. It is populated with the
// built-in kinds during package initialization and sealed by the first
// NewVM; after that it is read-only.
func Types() *TypeRegistry {
	return types
}

// Built-in kinds, in registration order.
var (
	TypeString   = types.RegisterType(stringOps{})
	TypeFunction = types.RegisterType(functionOps{})
	TypeClass    = types.RegisterType(classOps{})
	TypeInstance = types.RegisterType(instanceOps{})
)
