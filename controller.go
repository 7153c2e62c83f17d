package kvo

import "context"

// Controller provides lifecycle control for one property of one object
type Controller struct {
	host Host
	key  string
}

// Accessor creates a controller for key on host
func Accessor(host Host, key string) *Controller {
	return &Controller{
		host: host,
		key:  key,
	}
}

func (c *Controller) scope() *Scope {
	return c.host.observable().Scope()
}

// Get retrieves the latest value (computes it if not cached)
func (c *Controller) Get() (any, error) {
	return c.scope().Get(c.host, c.key)
}

// Peek retrieves the cached value without computing it
func (c *Controller) Peek() (any, bool) {
	m := c.host.observable().meta(false)
	if m == nil {
		return nil, false
	}
	return m.cache.Load(c.key)
}

// Update sets a new value and propagates it to dependents
func (c *Controller) Update(newVal any) error {
	return c.scope().Set(c.host, c.key, newVal)
}

// Set is an alias for Update
func (c *Controller) Set(newVal any) error {
	return c.Update(newVal)
}

// Release invalidates the cached value
func (c *Controller) Release() error {
	if m := c.host.observable().meta(false); m != nil {
		m.cache.Delete(c.key)
	}
	return nil
}

// Reload invalidates and immediately recomputes
func (c *Controller) Reload() (any, error) {
	if err := c.Release(); err != nil {
		return nil, err
	}
	return c.Get()
}

// Recompute refreshes the property and notifies its dependents, as a
// change of one of its dependencies would
func (c *Controller) Recompute(ctx context.Context) error {
	return c.scope().recompute(ctx, c.host, c.key)
}

// IsCached checks if the value is currently cached
func (c *Controller) IsCached() bool {
	_, ok := c.Peek()
	return ok
}

// Field is a Controller with a typed Get
type Field[T any] struct {
	*Controller
}

// Bind creates a typed controller for key on host
func Bind[T any](host Host, key string) Field[T] {
	return Field[T]{Controller: Accessor(host, key)}
}

// Get retrieves the value as T
func (f Field[T]) Get() (T, error) {
	v, err := f.Controller.Get()
	if err != nil {
		var zero T
		return zero, err
	}
	return SafeTypeAssertion[T](v)
}

// Peek retrieves the cached value as T without computing it
func (f Field[T]) Peek() (T, bool) {
	v, ok := f.Controller.Peek()
	if !ok {
		var zero T
		return zero, false
	}
	typed, err := SafeTypeAssertion[T](v)
	return typed, err == nil
}

// Update sets a typed value
func (f Field[T]) Update(v T) error {
	return f.Controller.Update(v)
}
