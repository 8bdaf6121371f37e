package vm

import (
	"strings"
)

// ---------------------------------------------------------------------------
// C3 linearization
// ---------------------------------------------------------------------------

// Linearize computes and caches c's ancestor order with the C3 merge.
//
// The merge inputs are each parent's finalized linearization, in
// declaration order, followed by the declared parent list itself. On each
// step the first input head that appears in no input's tail is emitted and
// removed from every input. If no head qualifies while inputs remain, the
// hierarchy is inconsistent: c is marked unusable, its linearization stays
// empty, and the error is returned (and returned again on later calls).
//
// A linearized class is never recomputed; calling Linearize again is a
// no-op.
func (c *Class) Linearize() error {
	switch c.state {
	case ClassLinearized:
		return nil
	case ClassUnusable:
		return c.err
	case ClassDestroyed:
		return newError(KindUnusableClass, c.Name(), "class has been destroyed")
	}

	for _, p := range c.parents {
		if p.state != ClassLinearized {
			return newError(KindParentNotReady, c.Name(), "parent %s is %s", p.Name(), p.state)
		}
	}

	out, err := c3(c)
	if err != nil {
		c.state = ClassUnusable
		c.err = err
		c.linearization = nil
		log.Warningf("class %s: %v", c.Name(), err)
		return err
	}

	c.linearization = out
	c.state = ClassLinearized
	return nil
}

// LinearizationError returns the cached failure of an unusable class.
func (c *Class) LinearizationError() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

// c3 runs the merge without touching c's state.
func c3(c *Class) ([]*Class, *Error) {
	out := make([]*Class, 1, 1+len(c.parents))
	out[0] = c

	n := len(c.parents)
	if n == 0 {
		return out, nil
	}

	// Inputs are copies: the merge consumes them.
	in := make([][]*Class, 0, n+1)
	for _, p := range c.parents {
		in = append(in, append([]*Class(nil), p.linearization...))
	}
	in = append(in, append([]*Class(nil), c.parents...))

	for !mergeDone(in) {
		head := mergeNext(in)
		if head == nil {
			return nil, newError(KindInconsistentHierarchy, c.Name(),
				"cannot order %s", describeHeads(in))
		}
		out = append(out, head)
		for i := range in {
			in[i] = removeClass(in[i], head)
		}
	}
	return out, nil
}

// mergeNext returns the first head that is in no tail, scanning the
// inputs left to right, or nil if none qualifies.
func mergeNext(in [][]*Class) *Class {
	for _, list := range in {
		if len(list) == 0 {
			continue
		}
		head := list[0]
		if !inAnyTail(in, head) {
			return head
		}
	}
	return nil
}

func mergeDone(in [][]*Class) bool {
	for _, list := range in {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

func inAnyTail(in [][]*Class, c *Class) bool {
	for _, list := range in {
		for i := 1; i < len(list); i++ {
			if list[i] == c {
				return true
			}
		}
	}
	return false
}

// removeClass deletes every occurrence of c from list, in place.
func removeClass(list []*Class, c *Class) []*Class {
	kept := list[:0]
	for _, k := range list {
		if k != c {
			kept = append(kept, k)
		}
	}
	return kept
}

// describeHeads names the remaining input heads for error messages.
func describeHeads(in [][]*Class) string {
	var names []string
	seen := make(map[*Class]bool)
	for _, list := range in {
		if len(list) == 0 || seen[list[0]] {
			continue
		}
		seen[list[0]] = true
		names = append(names, list[0].Name())
	}
	return strings.Join(names, ", ")
}
