package kvo

import (
	"context"
	"fmt"

	"github.com/pumped-fn/kvo/pkg/schema"
)

// PropertyFunc computes a property. The same function serves reads and
// writes; ctx.Value reports which one it is.
type PropertyFunc func(ctx *PropertyCtx) (any, error)

// PropertyCtx is passed to a PropertyFunc
type PropertyCtx struct {
	ctx     context.Context
	scope   *Scope
	Key     string
	Object  any
	value   any
	setting bool
}

// Value returns the value being set and true, or nil and false on a read
func (c *PropertyCtx) Value() (any, bool) {
	return c.value, c.setting
}

// IsSet reports whether the function was invoked by a set
func (c *PropertyCtx) IsSet() bool {
	return c.setting
}

// Context returns the context of the operation that invoked the function
func (c *PropertyCtx) Context() context.Context {
	return c.ctx
}

// Scope returns the scope the function runs in
func (c *PropertyCtx) Scope() *Scope {
	return c.scope
}

// Get reads path relative to the property's object
func (c *PropertyCtx) Get(path string) (any, error) {
	return c.scope.GetContext(c.ctx, c.Object, path)
}

// Set writes path relative to the property's object
func (c *PropertyCtx) Set(path string, value any) error {
	return c.scope.SetContext(c.ctx, c.Object, path, value)
}

// Property declares a computed property. Flags may be changed until the
// property is installed on an object.
type Property struct {
	fn            PropertyFunc
	dependentKeys []string
	schema        schema.Schema
	cacheable     bool
	idempotent    bool
	installed     bool
}

// Properties maps keys to property declarations
type Properties map[string]*Property

// PropertyDeclarer is implemented by hosts that declare their computed
// properties up front. Init installs them.
type PropertyDeclarer interface {
	Properties() Properties
}

// NewProperty wraps fn as a computed property that recomputes whenever one
// of dependentKeys is set. Keys are paths relative to the owning object, or
// to a root registered on the scope when their first segment names one.
func NewProperty(fn PropertyFunc, dependentKeys ...string) *Property {
	keys := make([]string, len(dependentKeys))
	copy(keys, dependentKeys)
	return &Property{
		fn:            fn,
		dependentKeys: keys,
	}
}

// IsProperty is always true; it marks the value as a property declaration
func (p *Property) IsProperty() bool {
	return true
}

// DependentKeys returns a copy of the declared dependency paths
func (p *Property) DependentKeys() []string {
	keys := make([]string, len(p.dependentKeys))
	copy(keys, p.dependentKeys)
	return keys
}

// Cacheable memoizes reads until the property or a dependency is set
func (p *Property) Cacheable() *Property {
	p.mustBeOpen("Cacheable")
	p.cacheable = true
	return p
}

// Idempotent skips sets whose value equals the previous set value
func (p *Property) Idempotent() *Property {
	p.mustBeOpen("Idempotent")
	p.idempotent = true
	return p
}

// Validate checks values written to the property against s before the
// function runs. The validated value is what the function receives.
func (p *Property) Validate(s schema.Schema) *Property {
	p.mustBeOpen("Validate")
	p.schema = s
	return p
}

// Schema returns the schema set with Validate, or nil
func (p *Property) Schema() schema.Schema {
	return p.schema
}

func (p *Property) IsCacheable() bool {
	return p.cacheable
}

func (p *Property) IsIdempotent() bool {
	return p.idempotent
}

func (p *Property) mustBeOpen(method string) {
	if p.installed {
		panic(fmt.Sprintf("kvo: %s called on a property that is already installed", method))
	}
}

// accessMode is fixed when a property is installed so dispatch switches on
// it instead of re-reading flags
type accessMode uint8

const (
	modeComputed accessMode = iota
	modeCached
	modeIdempotent
	modeCachedIdempotent
)

func (m accessMode) cached() bool {
	return m == modeCached || m == modeCachedIdempotent
}

func (m accessMode) idempotent() bool {
	return m == modeIdempotent || m == modeCachedIdempotent
}

func (m accessMode) String() string {
	switch m {
	case modeComputed:
		return "computed"
	case modeCached:
		return "cached"
	case modeIdempotent:
		return "idempotent"
	case modeCachedIdempotent:
		return "cached+idempotent"
	}
	return fmt.Sprintf("accessMode(%d)", uint8(m))
}

func (p *Property) mode() accessMode {
	switch {
	case p.cacheable && p.idempotent:
		return modeCachedIdempotent
	case p.cacheable:
		return modeCached
	case p.idempotent:
		return modeIdempotent
	default:
		return modeComputed
	}
}
