// Package correlation threads a hierarchical correlation id through every
// call in a processing cycle via an explicit context.Context value, rather
// than task-local storage. Each scope push creates a new context value
// descending from the parent; nothing is stashed in mutable global state.
package correlation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type ctxKey struct{}

// Scope is the correlation id carried through one processing cycle. Its
// String form looks like "R<root>::process::iteration-1::match".
type Scope struct {
	value string
}

// NewRoot creates a root scope for an external request, formatted "R<id>".
func NewRoot() Scope {
	return Scope{value: "R" + uuid.NewString()}
}

// NewRootWithID creates a root scope using a caller-supplied id, useful when
// the id must match an externally visible request id.
func NewRootWithID(id string) Scope {
	return Scope{value: "R" + id}
}

// Push returns a child scope with label appended via "::".
func (s Scope) Push(label string) Scope {
	if s.value == "" {
		return Scope{value: label}
	}
	return Scope{value: s.value + "::" + label}
}

// String returns the wire form of the scope.
func (s Scope) String() string { return s.value }

// IsZero reports whether the scope carries no value.
func (s Scope) IsZero() bool { return s.value == "" }

// With returns a new context carrying scope. The parent context is left
// untouched; callers must propagate the returned context explicitly.
func With(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, scope)
}

// From extracts the Scope carried by ctx, or the zero Scope if none is set.
func From(ctx context.Context) Scope {
	if v, ok := ctx.Value(ctxKey{}).(Scope); ok {
		return v
	}
	return Scope{}
}

// Push is a convenience that extracts the scope from ctx, pushes label, and
// returns a new context carrying the descendant scope.
func Push(ctx context.Context, label string) context.Context {
	return With(ctx, From(ctx).Push(label))
}

// PushIndexed pushes a label suffixed with an integer, e.g. "iteration-2".
func PushIndexed(ctx context.Context, label string, index int) context.Context {
	return Push(ctx, fmt.Sprintf("%s-%d", label, index))
}
