package kvo

import (
	"context"

	"github.com/google/uuid"

	"github.com/pumped-fn/kvo/pkg/pubsub"
)

// Host is any object embedding Observable, used through a pointer
type Host interface {
	observable() *Observable
}

// UnknownPropertyHandler is consulted for keys that are neither a
// property, a struct field nor a stored value. With no value it is a read;
// with one value it is a write.
type UnknownPropertyHandler interface {
	UnknownProperty(key string, value ...any) (any, error)
}

type lifecycle uint8

const (
	stateUninitialized lifecycle = iota
	stateInitialized
)

// Observable gives its embedding struct computed properties, change events
// and path access. The zero value is ready to use; call InitObservable
// before relying on dependency propagation.
//
//	type Person struct {
//	    kvo.Observable
//	    First, Last string
//	}
type Observable struct {
	id     uuid.UUID
	host   Host
	scope  *Scope
	state  lifecycle
	record *meta
	hub    *pubsub.Hub
	values map[string]any
}

func (o *Observable) observable() *Observable {
	return o
}

// ObservableOf returns the Observable embedded in obj
func ObservableOf(obj any) (*Observable, bool) {
	h, ok := obj.(Host)
	if !ok {
		return nil, false
	}
	return h.observable(), true
}

// ID returns the object's identity token, assigned on first use
func (o *Observable) ID() uuid.UUID {
	if o.id == uuid.Nil {
		o.id = uuid.New()
	}
	return o.id
}

// Initialized reports whether Init has run on the object
func (o *Observable) Initialized() bool {
	return o.state == stateInitialized
}

// Scope returns the scope the object was initialized in, or the default scope
func (o *Observable) Scope() *Scope {
	if o.scope != nil {
		return o.scope
	}
	return defaultScope
}

// Define installs p under key. Defining a key again replaces the previous
// property and drops its cached values. On an initialized object the new
// property's dependencies are wired immediately.
func (o *Observable) Define(key string, p *Property) error {
	d, err := newDescriptor(key, p)
	if err != nil {
		return err
	}
	if o.Initialized() {
		return o.scope.define(o.host, key, d)
	}
	o.meta(true).install(key, d)
	return nil
}

// HasProperty reports whether key is an installed computed property
func (o *Observable) HasProperty(key string) bool {
	return o.descriptor(key) != nil
}

// UnknownProperty is the default handler for undeclared keys: it stores
// written values on the object and returns them on later reads.
func (o *Observable) UnknownProperty(key string, value ...any) (any, error) {
	if len(value) > 0 {
		if o.values == nil {
			o.values = make(map[string]any)
		}
		o.values[key] = value[0]
		return value[0], nil
	}
	if v, ok := o.values[key]; ok {
		return v, nil
	}
	return Undefined, nil
}

func (o *Observable) stored(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *Observable) events() *pubsub.Hub {
	if o.hub == nil {
		s := o.Scope()
		o.hub = pubsub.New(
			pubsub.WithScheduler(s.scheduler),
			pubsub.WithErrorHandler(s.reportDeferred),
		)
	}
	return o.hub
}

// Subscribe registers handler for changes of key on this object. Handlers
// are deferred to the scope's scheduler unless pubsub.Synchronous is given.
func (o *Observable) Subscribe(key string, handler pubsub.Handler, opts ...pubsub.SubscribeOption) (*pubsub.Subscription, error) {
	return o.events().Subscribe(key, handler, opts...)
}

// Unsubscribe removes a subscription made with Subscribe
func (o *Observable) Unsubscribe(sub *pubsub.Subscription) error {
	return o.events().Unsubscribe(sub)
}

// Publish announces a change of key to its subscribers
func (o *Observable) Publish(ctx context.Context, key string, args ...any) error {
	if o.hub == nil {
		return nil
	}
	return o.hub.Publish(ctx, key, args...)
}
