// Package pubsub is a string-keyed publish/subscribe hub. Synchronous
// subscribers run inside Publish; the others are handed to a Scheduler and
// run on a later turn.
package pubsub

import (
	"context"
	"errors"
	"fmt"
)

// Event is what handlers receive
type Event struct {
	Name string
	Args []any
}

// Arg returns the i-th argument or nil
func (e Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Handler reacts to an event
type Handler func(ctx context.Context, ev Event) error

// Condition decides whether a subscription sees an event
type Condition func(ev Event) bool

// ErrorHandler receives errors from deferred handlers, which have no caller
// to return them to
type ErrorHandler func(ev Event, err error)

// ErrNotSubscribed is returned when removing a subscription the hub doesn't hold
var ErrNotSubscribed = errors.New("pubsub: subscription not found")

// NotCallableError is returned when a function argument is nil
type NotCallableError struct {
	What string
}

func (e *NotCallableError) Error() string {
	return fmt.Sprintf("%s is not callable", e.What)
}

// Subscription is one registered handler
type Subscription struct {
	event       string
	handler     Handler
	synchronous bool
	once        bool
	condition   Condition
	hub         *Hub
	active      bool
}

// Event returns the event name the subscription listens to
func (s *Subscription) Event() string {
	return s.event
}

// IsSynchronous reports whether the handler runs inside Publish
func (s *Subscription) IsSynchronous() bool {
	return s.synchronous
}

// Active reports whether the subscription is still registered
func (s *Subscription) Active() bool {
	return s.active
}

// Cancel removes the subscription from its hub
func (s *Subscription) Cancel() error {
	return s.hub.Unsubscribe(s)
}

// SubscribeOption configures a subscription
type SubscribeOption func(*Subscription)

// Synchronous makes the handler run before Publish returns
func Synchronous() SubscribeOption {
	return func(s *Subscription) {
		s.synchronous = true
	}
}

// When filters events through cond before the handler sees them
func When(cond Condition) SubscribeOption {
	return func(s *Subscription) {
		s.condition = cond
	}
}

// Once removes the subscription after its first delivery
func Once() SubscribeOption {
	return func(s *Subscription) {
		s.once = true
	}
}

// Hub holds subscriptions keyed by event name. It is not safe for
// concurrent use.
type Hub struct {
	handlers  map[string][]*Subscription
	scheduler Scheduler
	onError   ErrorHandler
}

// Option configures a Hub
type Option func(*Hub)

// WithScheduler sets where deferred handlers are queued
func WithScheduler(s Scheduler) Option {
	return func(h *Hub) {
		h.scheduler = s
	}
}

// WithErrorHandler sets the sink for errors returned by deferred handlers
func WithErrorHandler(fn ErrorHandler) Option {
	return func(h *Hub) {
		h.onError = fn
	}
}

// New creates a hub. Without WithScheduler it gets its own Queue.
func New(opts ...Option) *Hub {
	h := &Hub{
		handlers: make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.scheduler == nil {
		h.scheduler = NewQueue()
	}
	return h
}

// Scheduler returns the scheduler deferred handlers go to
func (h *Hub) Scheduler() Scheduler {
	return h.scheduler
}

// SetScheduler replaces the scheduler for future deferred deliveries
func (h *Hub) SetScheduler(s Scheduler) {
	if s != nil {
		h.scheduler = s
	}
}

// Subscribe registers handler for event
func (h *Hub) Subscribe(event string, handler Handler, opts ...SubscribeOption) (*Subscription, error) {
	if handler == nil {
		return nil, &NotCallableError{What: fmt.Sprintf("handler for %q", event)}
	}

	sub := &Subscription{
		event:   event,
		handler: handler,
		hub:     h,
		active:  true,
	}
	for _, opt := range opts {
		opt(sub)
	}

	h.handlers[event] = append(h.handlers[event], sub)
	return sub, nil
}

// Unsubscribe removes sub. Deliveries already handed to the scheduler still run.
func (h *Hub) Unsubscribe(sub *Subscription) error {
	if sub == nil || sub.hub != h {
		return ErrNotSubscribed
	}

	subs := h.handlers[sub.event]
	for i, s := range subs {
		if s == sub {
			// copy so a Publish iterating the old slice is unaffected
			next := make([]*Subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(h.handlers, sub.event)
			} else {
				h.handlers[sub.event] = next
			}
			sub.active = false
			return nil
		}
	}
	return ErrNotSubscribed
}

// Publish delivers event to its subscribers in registration order.
// Synchronous handlers run now and their errors are joined into the result;
// deferred handlers are scheduled and report to the error handler.
func (h *Hub) Publish(ctx context.Context, event string, args ...any) error {
	subs := h.handlers[event]
	if len(subs) == 0 {
		return nil
	}

	ev := Event{Name: event, Args: args}
	var errs []error
	for _, sub := range subs {
		if !sub.active {
			continue
		}
		if sub.condition != nil && !sub.condition(ev) {
			continue
		}
		if sub.once {
			_ = h.Unsubscribe(sub)
		}

		if sub.synchronous {
			if err := sub.handler(ctx, ev); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		handler := sub.handler
		h.scheduler.Schedule(func() {
			if err := handler(ctx, ev); err != nil && h.onError != nil {
				h.onError(ev, err)
			}
		})
	}
	return errors.Join(errs...)
}

// HasSubscribers reports whether event has any subscriptions
func (h *Hub) HasSubscribers(event string) bool {
	return len(h.handlers[event]) > 0
}

// Subscriptions returns a copy of the subscriptions for event
func (h *Hub) Subscriptions(event string) []*Subscription {
	subs := h.handlers[event]
	out := make([]*Subscription, len(subs))
	copy(out, subs)
	return out
}

// Clear removes all subscriptions for event
func (h *Hub) Clear(event string) {
	for _, sub := range h.handlers[event] {
		sub.active = false
	}
	delete(h.handlers, event)
}

// ClearAll removes every subscription
func (h *Hub) ClearAll() {
	for event := range h.handlers {
		h.Clear(event)
	}
}
