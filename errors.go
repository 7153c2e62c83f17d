package kvo

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/pumped-fn/kvo/pkg/proppath"
	"github.com/pumped-fn/kvo/pkg/pubsub"
)

// MalformedPathError is returned for paths that do not tokenize
type MalformedPathError = proppath.MalformedPathError

// NotCallableError is returned when a property or handler function is nil
type NotCallableError = pubsub.NotCallableError

var (
	// ErrDepthExceeded is returned when synchronous dependency propagation
	// nests deeper than the scope's MaxDepth
	ErrDepthExceeded = errors.New("dependency propagation depth exceeded")

	// ErrNotObservable is returned when an object that has to publish
	// changes does not embed Observable
	ErrNotObservable = errors.New("object is not observable")

	// ErrNotSettable is returned when a plain value cannot be assigned
	ErrNotSettable = errors.New("property is not settable")
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is returned for keys that have no value and no handler
var Undefined any = undefined{}

// IsUndefined reports whether v is Undefined
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// PropertyError wraps an error returned by a property function
type PropertyError struct {
	Key        string
	Op         OperationKind
	Cause      error
	StackTrace []byte
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("property %q failed during %s: %v", e.Key, e.Op, e.Cause)
}

func (e *PropertyError) Unwrap() error {
	return e.Cause
}

func newPropertyError(key string, op OperationKind, cause error) *PropertyError {
	return &PropertyError{
		Key:        key,
		Op:         op,
		Cause:      cause,
		StackTrace: debug.Stack(),
	}
}

// CycleError is returned by Init when a dependency would close a cycle.
// Cycle lists the nodes from the dependent property back to itself.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// SafeTypeAssertion performs safe type assertion with proper error.
// nil and Undefined both yield the zero value.
func SafeTypeAssertion[T any](value any) (T, error) {
	var zero T
	if value == nil || IsUndefined(value) {
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("type assertion error: expected %T, got %T (value: %v)", zero, value, value)
	}

	return typed, nil
}
