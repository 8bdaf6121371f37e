// Package dist implements the wire format for class hierarchies. A
// snapshot records every registered class of a VM, plus any replaced
// class still inherited from, parents first, as CBOR, so another VM can
// rebuild and verify the same hierarchy.
package dist

// SnapshotVersion is the current wire version.
const SnapshotVersion = 2

// Snapshot is a serializable description of a VM's class hierarchy.
type Snapshot struct {
	Version int           `cbor:"1,keyasint"`
	Classes []ClassRecord `cbor:"2,keyasint"`
}

// ClassRecord describes one class. Parents and Linearization hold indices
// into Snapshot.Classes, and every index is smaller than the record's own
// except the leading self entry of Linearization. A class replaced by a
// redefinition is recorded with Replaced set; it is rebuilt for the
// classes that still inherit from it but is not registered.
type ClassRecord struct {
	Name          string         `cbor:"1,keyasint"`
	UID           uint64         `cbor:"2,keyasint,omitempty"` // source process only
	Parents       []int          `cbor:"3,keyasint,omitempty"`
	Linearization []int          `cbor:"4,keyasint"`
	Methods       []MethodRecord `cbor:"5,keyasint,omitempty"`
	Replaced      bool           `cbor:"6,keyasint,omitempty"`
}

// MethodRecord describes a method declared directly on a class. Bodies
// are opaque to the object model; only text bodies are carried.
type MethodRecord struct {
	Name  string `cbor:"1,keyasint"`
	Arity int    `cbor:"2,keyasint"`
	Body  string `cbor:"3,keyasint,omitempty"`
}
