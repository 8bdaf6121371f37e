package vm

import (
	"fmt"
	"strings"
)

// ErrorKind categorizes errors raised by the class model.
type ErrorKind string

const (
	// KindInconsistentHierarchy: C3 merge found no valid next head.
	KindInconsistentHierarchy ErrorKind = "inconsistent_hierarchy"
	// KindFinalized: the class was already linearized (or failed to be)
	// and its parents can no longer change.
	KindFinalized ErrorKind = "finalized"
	// KindParentNotReady: a parent has no finalized linearization yet.
	KindParentNotReady ErrorKind = "parent_not_ready"
	// KindDuplicateParent: the parent is the class itself or already declared.
	KindDuplicateParent ErrorKind = "duplicate_parent"
	// KindUnknownClass: a class name did not resolve.
	KindUnknownClass ErrorKind = "unknown_class"
	// KindUnusableClass: the class cannot be used for dispatch.
	KindUnusableClass ErrorKind = "unusable_class"
	// KindNoSuchMethod: lookup missed and no missing-method hook exists.
	KindNoSuchMethod ErrorKind = "no_such_method"
)

// Error is the structured error type returned by the class model.
type Error struct {
	Kind   ErrorKind
	Class  string // class the error concerns
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Class != "" {
		b.WriteString(" in class ")
		b.WriteString(e.Class)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrInconsistentHierarchy = &Error{Kind: KindInconsistentHierarchy}
	ErrFinalized             = &Error{Kind: KindFinalized}
	ErrParentNotReady        = &Error{Kind: KindParentNotReady}
	ErrDuplicateParent       = &Error{Kind: KindDuplicateParent}
	ErrUnknownClass          = &Error{Kind: KindUnknownClass}
	ErrUnusableClass         = &Error{Kind: KindUnusableClass}
	ErrNoSuchMethod          = &Error{Kind: KindNoSuchMethod}
)

func newError(kind ErrorKind, class string, format string, args ...any) *Error {
	e := &Error{Kind: kind, Class: class}
	if len(args) > 0 {
		e.Detail = fmt.Sprintf(format, args...)
	} else {
		e.Detail = format
	}
	return e
}
