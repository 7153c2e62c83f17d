package kvo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pumped-fn/kvo/pkg/pubsub"
)

// DefaultMaxDepth bounds nested recomputes when no WithMaxDepth is given
const DefaultMaxDepth = 256

// Scope owns the dependency graph, extensions and deferred-delivery queue
// shared by the objects initialized in it. A scope and its objects must be
// used from one goroutine at a time.
type Scope struct {
	extensions []Extension
	scheduler  pubsub.Scheduler
	queue      *pubsub.Queue
	logger     *slog.Logger
	graph      *ReactiveGraph
	roots      map[string]any
	members    map[*Observable]Host
	maxDepth   int
	depth      int
	nesting    int
}

// ScopeOption is a modifier for scopes
type ScopeOption func(*Scope)

// WithLogger sets the logger for engine events. The default discards.
func WithLogger(logger *slog.Logger) ScopeOption {
	return func(s *Scope) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExtension returns an option that registers an extension to a scope
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithScheduler replaces the queue deferred subscribers are delivered
// through. Flush only drains the built-in queue.
func WithScheduler(scheduler pubsub.Scheduler) ScopeOption {
	return func(s *Scope) {
		if scheduler != nil {
			s.scheduler = scheduler
			s.queue = nil
		}
	}
}

// WithMaxDepth bounds nested recomputes; zero or less disables the bound
func WithMaxDepth(depth int) ScopeOption {
	return func(s *Scope) {
		s.maxDepth = depth
	}
}

// WithRoot registers obj under name. Dependent keys whose first segment is
// name resolve from obj instead of the declaring object.
func WithRoot(name string, obj any) ScopeOption {
	return func(s *Scope) {
		s.roots[name] = obj
	}
}

// NewScope creates a new scope with optional configuration
func NewScope(opts ...ScopeOption) *Scope {
	queue := pubsub.NewQueue()
	s := &Scope{
		scheduler: queue,
		queue:     queue,
		logger:    slog.New(slog.DiscardHandler),
		graph:     NewReactiveGraph(),
		roots:     make(map[string]any),
		members:   make(map[*Observable]Host),
		maxDepth:  DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var defaultScope = NewScope()

// DefaultScope returns the scope used by the package-level functions and by
// objects that were never initialized
func DefaultScope() *Scope {
	return defaultScope
}

func scopeOf(obj any) *Scope {
	if h, ok := obj.(Host); ok {
		return h.observable().Scope()
	}
	return defaultScope
}

// UseExtension registers an extension to the scope
func (s *Scope) UseExtension(ext Extension) error {
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})

	return ext.Init(s)
}

// SetRoot registers or replaces a named root
func (s *Scope) SetRoot(name string, obj any) {
	s.roots[name] = obj
}

// Root returns a named root
func (s *Scope) Root(name string) (any, bool) {
	obj, ok := s.roots[name]
	return obj, ok
}

// Logger returns the scope's logger
func (s *Scope) Logger() *slog.Logger {
	return s.logger
}

// Graph returns the scope's dependency graph
func (s *Scope) Graph() *ReactiveGraph {
	return s.graph
}

// Edges returns the dependency edges created by Init, in creation order
func (s *Scope) Edges() []*Edge {
	return s.graph.Edges()
}

// ExportDependencyGraph returns each observed node with its direct dependents
func (s *Scope) ExportDependencyGraph() map[Node][]Node {
	return s.graph.Export()
}

// Dependents returns every property that recomputes, directly or
// transitively, when key is set on host
func (s *Scope) Dependents(host Host, key string) []Node {
	return s.graph.FindDependents(Node{Object: host.observable(), Key: key})
}

// Flush runs deferred subscribers queued so far, and any they queue in
// turn. It returns how many ran.
func (s *Scope) Flush() int {
	if s.queue == nil {
		return 0
	}
	return s.queue.Drain()
}

// Flush drains the default scope
func Flush() int {
	return defaultScope.Flush()
}

// Dispose releases every object initialized in the scope and disposes the
// extensions
func (s *Scope) Dispose() error {
	hosts := make([]Host, 0, len(s.members))
	for _, h := range s.members {
		hosts = append(hosts, h)
	}
	for _, h := range hosts {
		s.Release(h)
	}

	for _, ext := range s.extensions {
		if err := ext.Dispose(s); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}

	return nil
}

func (s *Scope) reportDeferred(ev pubsub.Event, err error) {
	s.logger.Error("deferred subscriber failed", "event", ev.Name, "error", err)
}

// wrap runs fn through the extension chain. OnError fires only for the
// outermost operation so nested failures are reported once.
func (s *Scope) wrap(ctx context.Context, op *Operation, fn func(context.Context) (any, error)) (any, error) {
	op.Scope = s
	exts := s.extensions

	next := fn
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func(ctx context.Context) (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}

	s.nesting++
	defer func() { s.nesting-- }()
	result, err := next(ctx)

	if err != nil && s.nesting == 1 {
		for _, ext := range exts {
			ext.OnError(err, op, s)
		}
	}
	return result, err
}
