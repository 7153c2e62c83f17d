package kvo

import (
	"context"
	"fmt"
	"sort"

	"github.com/pumped-fn/kvo/pkg/proppath"
	"github.com/pumped-fn/kvo/pkg/pubsub"
)

// InitObservable initializes host in the default scope
func InitObservable(host Host) error {
	return defaultScope.Init(host)
}

// Init activates host: it installs the properties host declares through
// PropertyDeclarer and subscribes each property to its dependent keys.
// Calling Init again is a no-op. On error the object and the graph are left
// as they were.
func (s *Scope) Init(host Host) error {
	o := host.observable()
	if o.Initialized() {
		return nil
	}

	op := &Operation{Kind: OpInit, Object: host}
	_, err := s.wrap(context.Background(), op, func(ctx context.Context) (any, error) {
		return nil, s.init(ctx, host, o)
	})
	return err
}

func (s *Scope) init(ctx context.Context, host Host, o *Observable) error {
	declared := map[string]*descriptor{}
	if pd, ok := host.(PropertyDeclarer); ok {
		for key, p := range pd.Properties() {
			if o.descriptor(key) != nil {
				continue
			}
			d, err := newDescriptor(key, p)
			if err != nil {
				return err
			}
			declared[key] = d
		}
	}

	// Objects not yet bound to a scope resolve through s from here on.
	prevScope, prevHost := o.scope, o.host
	o.scope, o.host = s, host
	m := o.meta(true)
	for key, d := range declared {
		m.install(key, d)
	}

	var added []*Edge
	rollback := func() {
		for _, e := range added {
			s.graph.RemoveEdge(e)
			if e.sub != nil {
				_ = e.sub.Cancel()
			}
		}
		for key := range declared {
			delete(m.descriptors, key)
		}
		o.scope, o.host = prevScope, prevHost
	}

	for _, key := range sortedKeys(m.descriptors) {
		edges, err := s.wire(ctx, host, key, m.descriptors[key])
		added = append(added, edges...)
		if err != nil {
			rollback()
			return err
		}
	}

	if o.hub != nil {
		o.hub.SetScheduler(s.scheduler)
	}
	o.ID()
	o.state = stateInitialized
	s.members[o] = host

	s.logger.Debug("observable initialized",
		"object", o.ID().String(),
		"properties", len(m.descriptors),
		"edges", len(added),
	)
	return nil
}

// define installs d on an initialized object and wires it
func (s *Scope) define(host Host, key string, d *descriptor) error {
	o := host.observable()
	m := o.meta(true)
	prev := m.descriptors[key]

	for _, e := range s.graph.EdgesOf(o) {
		if e.Dependent == o && e.Key == key {
			s.removeEdge(e)
		}
	}
	m.install(key, d)

	edges, err := s.wire(context.Background(), host, key, d)
	if err != nil {
		for _, e := range edges {
			s.removeEdge(e)
		}
		if prev != nil {
			m.descriptors[key] = prev
			_, _ = s.wire(context.Background(), host, key, prev)
		} else {
			delete(m.descriptors, key)
		}
		return err
	}
	return nil
}

// wire adds one edge per dependent key of d. It returns the edges it added
// even on error so the caller can undo them.
func (s *Scope) wire(ctx context.Context, host Host, key string, d *descriptor) ([]*Edge, error) {
	o := host.observable()
	var added []*Edge

	for _, segs := range d.watching {
		owner, event, err := s.locate(ctx, host, segs)
		if err != nil {
			return added, fmt.Errorf("dependent key %q of %q: %w", proppath.Join(segs), key, err)
		}

		edge := &Edge{
			Owner:     owner,
			Event:     event,
			Dependent: o,
			Key:       key,
		}
		if cycle := s.graph.AddEdge(edge); cycle != nil {
			cerr := &CycleError{Cycle: make([]string, len(cycle))}
			for i, n := range cycle {
				cerr.Cycle[i] = n.String()
			}
			s.logger.Warn("dependency cycle rejected", "property", key, "cycle", cerr.Cycle)
			return added, cerr
		}
		added = append(added, edge)

		sub, err := owner.events().Subscribe(event, s.notifier(host, key), pubsub.Synchronous())
		if err != nil {
			return added, err
		}
		edge.sub = sub

		s.logger.Debug("dependency registered",
			"property", key,
			"object", o.ID().String(),
			"depends_on", event,
			"owner", owner.ID().String(),
		)
	}
	return added, nil
}

// locate resolves the object owning the last segment of segs. Paths whose
// first segment names a scope root start from that root.
func (s *Scope) locate(ctx context.Context, host any, segs []string) (*Observable, string, error) {
	start, rest := host, segs[:len(segs)-1]
	if root, ok := s.roots[segs[0]]; ok && len(segs) > 1 {
		start, rest = root, segs[1:len(segs)-1]
	}

	owner, err := s.walk(ctx, start, rest)
	if err != nil {
		return nil, "", err
	}
	h, ok := owner.(Host)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s resolves to %T", ErrNotObservable, proppath.Join(segs[:len(segs)-1]), owner)
	}
	return h.observable(), segs[len(segs)-1], nil
}

func (s *Scope) notifier(host Host, key string) pubsub.Handler {
	return func(ctx context.Context, ev pubsub.Event) error {
		return s.recompute(ctx, host, key)
	}
}

// recompute refreshes key on host after a dependency changed and publishes
// the new value. It bypasses the idempotence check and forgets the last set
// value, so the next caller write runs even if it repeats that value.
func (s *Scope) recompute(ctx context.Context, host Host, key string) error {
	s.depth++
	defer func() { s.depth-- }()
	if s.maxDepth > 0 && s.depth > s.maxDepth {
		return fmt.Errorf("%w: recomputing %q at depth %d", ErrDepthExceeded, key, s.depth)
	}

	o := host.observable()
	op := &Operation{Kind: OpRecompute, Object: host, Key: key}
	_, err := s.wrap(ctx, op, func(ctx context.Context) (any, error) {
		d := o.descriptor(key)
		if d == nil {
			return nil, nil
		}

		m := o.meta(true)
		if d.mode.idempotent() {
			m.lastSet.Delete(key)
		}
		if d.mode.cached() {
			m.cache.Delete(key)
		}
		v, err := s.invoke(ctx, host, key, d, nil, false)
		if err != nil {
			return nil, err
		}
		if d.mode.cached() {
			m.cache.Store(key, v)
		}

		s.logger.Debug("property recomputed", "property", key, "object", o.ID().String(), "depth", s.depth)
		return v, o.Publish(ctx, key, v)
	})
	return err
}

// Release removes every edge host takes part in, as dependent or as owner,
// and returns it to the uninitialized state. Installed properties and
// cached values stay.
func (s *Scope) Release(host Host) {
	o := host.observable()
	edges := s.graph.EdgesOf(o)
	for _, e := range edges {
		s.removeEdge(e)
	}
	if o.scope == s {
		o.state = stateUninitialized
	}
	delete(s.members, o)

	s.logger.Debug("observable released", "object", o.ID().String(), "edges", len(edges))
}

func (s *Scope) removeEdge(e *Edge) {
	s.graph.RemoveEdge(e)
	if e.sub != nil {
		_ = e.sub.Cancel()
	}
}

// Observe subscribes handler to changes of the value at path on host. The
// subscription goes to the object owning the last segment, which must be
// observable.
func Observe(host any, path string, handler pubsub.Handler, opts ...pubsub.SubscribeOption) (*pubsub.Subscription, error) {
	return scopeOf(host).Observe(host, path, handler, opts...)
}

// Observe subscribes handler to changes of the value at path on host
func (s *Scope) Observe(host any, path string, handler pubsub.Handler, opts ...pubsub.SubscribeOption) (*pubsub.Subscription, error) {
	segs, err := proppath.Tokenize(path)
	if err != nil {
		return nil, err
	}
	owner, event, err := s.locate(context.Background(), host, segs)
	if err != nil {
		return nil, err
	}
	return owner.events().Subscribe(event, handler, opts...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
