// Package vm implements the runtime object model.
//
// This package contains:
//   - A tagged Value representation
//   - The process-wide type registry and per-kind dispatch
//   - Classes with multiple inheritance and C3 linearization
//   - Method and super lookup over cached linearizations
//   - A reference mark-sweep heap driven by each kind's mark operation
package vm
