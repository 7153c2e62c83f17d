package kvo

import "context"

// Extension provides hooks into property access
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a scope
	Init(scope *Scope) error

	// Wrap intercepts operations (init, get, set, recompute, invoke)
	Wrap(ctx context.Context, next func(context.Context) (any, error), op *Operation) (any, error)

	// OnError is called once per failed top-level operation
	OnError(err error, op *Operation, scope *Scope)

	// Dispose is called when the scope is disposed
	Dispose(scope *Scope) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(scope *Scope) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func(context.Context) (any, error), op *Operation) (any, error) {
	return next(ctx)
}

func (e *BaseExtension) OnError(err error, op *Operation, scope *Scope) {
}

func (e *BaseExtension) Dispose(scope *Scope) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind   OperationKind
	Object any
	// Path is the path as given by the caller; empty for recompute and invoke
	Path string
	// Key is the property being computed; empty for get, set and init
	Key   string
	Value any
	Scope *Scope
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpInit indicates an object being initialized
	OpInit OperationKind = "init"
	// OpGet indicates a path read
	OpGet OperationKind = "get"
	// OpSet indicates a path write
	OpSet OperationKind = "set"
	// OpRecompute indicates a property refreshed by a dependency change
	OpRecompute OperationKind = "recompute"
	// OpInvoke indicates a property function call
	OpInvoke OperationKind = "invoke"
)
