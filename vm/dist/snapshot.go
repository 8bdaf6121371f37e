package dist

import (
	"fmt"
	"strings"

	"github.com/chazu/mro/vm"
)

// Capture records every registered class of v in registration order,
// each preceded by any ancestor not yet recorded. Ancestors replaced by a
// later redefinition of their name are recorded too, so children keep
// the exact parents they were declared with.
func Capture(v *vm.VM) *Snapshot {
	s := &Snapshot{Version: SnapshotVersion}
	all := v.Classes.All()

	registered := make(map[*vm.Class]bool, len(all))
	for _, c := range all {
		registered[c] = true
	}

	index := make(map[*vm.Class]int)
	var visit func(c *vm.Class)
	visit = func(c *vm.Class) {
		if _, ok := index[c]; ok {
			return
		}
		for _, p := range c.Parents() {
			visit(p)
		}
		index[c] = len(s.Classes)
		rec := captureClass(c, index)
		rec.Replaced = !registered[c]
		s.Classes = append(s.Classes, rec)
	}
	for _, c := range all {
		visit(c)
	}
	return s
}

func captureClass(c *vm.Class, index map[*vm.Class]int) ClassRecord {
	rec := ClassRecord{
		Name:          c.Name(),
		UID:           c.UID(),
		Parents:       indices(c.Parents(), index),
		Linearization: indices(c.Linearization(), index),
	}
	for _, name := range c.Methods() {
		m, _ := c.LocalMethod(name)
		mr := MethodRecord{Name: name}
		if fn, ok := m.Object().(*vm.Function); ok {
			mr.Arity = fn.Arity
			if body, ok := fn.Body.(string); ok {
				mr.Body = body
			}
		}
		rec.Methods = append(rec.Methods, mr)
	}
	return rec
}

// Restore rebuilds a snapshot in a fresh VM. Each class is rebuilt and
// relinearized in record order; a recomputed order that differs from the
// recorded one is an error. Replaced classes are linearized but never
// registered, so the registered names resolve exactly as in the source.
func Restore(s *Snapshot) (*vm.VM, error) {
	v := vm.NewVM()

	// Replaced classes are only reachable through children restored
	// later, so every rebuilt class stays retained until the end.
	built := make([]*vm.Class, 0, len(s.Classes))
	defer func() {
		for _, c := range built {
			v.Heap.Release(c)
		}
	}()

	for i, rec := range s.Classes {
		c := v.BeginClass(rec.Name)
		v.Heap.Retain(c)
		built = append(built, c)

		if err := restoreClass(v, c, rec, built[:i]); err != nil {
			return nil, fmt.Errorf("dist: restore class %s: %w", rec.Name, err)
		}
		if err := verifyLinearization(c, rec, built); err != nil {
			return nil, fmt.Errorf("dist: restore class %s: %w", rec.Name, err)
		}
	}
	return v, nil
}

// restoreClass attaches parents and methods to c and finishes it.
// earlier holds the classes rebuilt from the preceding records.
func restoreClass(v *vm.VM, c *vm.Class, rec ClassRecord, earlier []*vm.Class) error {
	for _, pi := range rec.Parents {
		if pi < 0 || pi >= len(earlier) {
			v.AbandonClass(c)
			return fmt.Errorf("parent record %d does not precede record %d", pi, len(earlier))
		}
		if err := c.AddParent(earlier[pi]); err != nil {
			v.AbandonClass(c)
			return err
		}
	}
	for _, m := range rec.Methods {
		var body any
		if m.Body != "" {
			body = m.Body
		}
		if _, err := v.DefineMethod(c, m.Name, m.Arity, body); err != nil {
			v.AbandonClass(c)
			return err
		}
	}
	if rec.Replaced {
		return v.FinishUnregistered(c)
	}
	return v.FinishClass(c)
}

func verifyLinearization(c *vm.Class, rec ClassRecord, built []*vm.Class) error {
	index := make(map[*vm.Class]int, len(built))
	for i, b := range built {
		index[b] = i
	}
	got := indices(c.Linearization(), index)
	if equal(got, rec.Linearization) {
		return nil
	}
	return fmt.Errorf("linearization [%s] does not match recorded [%s]",
		describe(got, built), describe(rec.Linearization, built))
}

// indices maps classes to their record positions.
func indices(cs []*vm.Class, index map[*vm.Class]int) []int {
	if len(cs) == 0 {
		return nil
	}
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = index[c]
	}
	return out
}

// describe names the records at the given positions for error messages.
func describe(idx []int, built []*vm.Class) string {
	names := make([]string, len(idx))
	for i, n := range idx {
		if n >= 0 && n < len(built) {
			names[i] = built[n].Name()
		} else {
			names[i] = fmt.Sprintf("#%d", n)
		}
	}
	return strings.Join(names, " ")
}

func equal(a, b []int) bool {
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
