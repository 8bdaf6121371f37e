package vm

// ---------------------------------------------------------------------------
// Method resolution over the cached linearization
// ---------------------------------------------------------------------------

// Lookup finds the first method named name declared directly on a class
// in c's linearization. A miss returns (Nil, false); it is an ordinary
// result, not an error. Classes that are not linearized always miss.
func (c *Class) Lookup(name string) (Value, bool) {
	if c.state != ClassLinearized {
		return Nil, false
	}
	return scanFrom(c.linearization, 0, name)
}

// LookupOwner is like Lookup but also returns the class that declares
// the method.
func (c *Class) LookupOwner(name string) (Value, *Class, bool) {
	if c.state != ClassLinearized {
		return Nil, nil, false
	}
	for _, k := range c.linearization {
		if m, ok := k.methods[name]; ok {
			return m, k, true
		}
	}
	return Nil, nil, false
}

// SuperLookup resolves a super call made from a method defined on
// defining, for a receiver whose runtime class is actual.
//
// The scan continues in actual's linearization immediately after
// defining's position there. In a diamond, the ancestor that follows
// defining depends on the receiver's full order, not on defining's own.
// If defining is not an ancestor of actual the lookup misses.
func SuperLookup(defining, actual *Class, name string) (Value, bool) {
	if actual.state != ClassLinearized {
		return Nil, false
	}
	for i, k := range actual.linearization {
		if k == defining {
			return scanFrom(actual.linearization, i+1, name)
		}
	}
	return Nil, false
}

func scanFrom(lin []*Class, start int, name string) (Value, bool) {
	for i := start; i < len(lin); i++ {
		if m, ok := lin[i].methods[name]; ok {
			return m, true
		}
	}
	return Nil, false
}

// RespondsTo returns true if Lookup would find name.
func (c *Class) RespondsTo(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}
