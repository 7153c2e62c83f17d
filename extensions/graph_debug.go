package extensions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pumped-fn/kvo"
)

// GraphDebugExtension remembers which properties last computed or failed
// and, when a top-level operation fails, logs the scope's dependency tree
// with those statuses marked:
//
//	scope := kvo.NewScope(kvo.WithExtension(
//	    extensions.NewGraphDebugExtension(extensions.NewHumanHandler(os.Stderr, slog.LevelError)),
//	))
type GraphDebugExtension struct {
	kvo.BaseExtension

	// status of the last invocation per node
	computed map[kvo.Node]bool
	failed   map[kvo.Node]error
	logger   *slog.Logger
}

// NewGraphDebugExtension reports failures through logHandler. HumanHandler
// draws the tree; structured handlers get it as a string attribute.
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: kvo.NewBaseExtension("graph-debug"),
		computed:      make(map[kvo.Node]bool),
		failed:        make(map[kvo.Node]error),
		logger:        slog.New(logHandler),
	}
}

// Wrap tracks property invocations for debugging
func (e *GraphDebugExtension) Wrap(ctx context.Context, next func(context.Context) (any, error), op *kvo.Operation) (any, error) {
	result, err := next(ctx)

	if op.Kind != kvo.OpInvoke {
		return result, err
	}
	obs, ok := kvo.ObservableOf(op.Object)
	if !ok {
		return result, err
	}

	n := kvo.Node{Object: obs, Key: op.Key}
	if err != nil {
		e.failed[n] = err
		delete(e.computed, n)
	} else {
		e.computed[n] = true
		delete(e.failed, n)
	}
	return result, err
}

// OnError logs the dependency tree when an operation fails
func (e *GraphDebugExtension) OnError(err error, op *kvo.Operation, scope *kvo.Scope) {
	target := op.Path
	if target == "" {
		target = op.Key
	}

	e.logger.Error(propertyErrorMsg,
		"target", target,
		"error", err.Error(),
		"operation", string(op.Kind),
		"dependency_graph", e.formatDependencyGraph(scope),
	)
}

// Dispose forgets tracked statuses
func (e *GraphDebugExtension) Dispose(scope *kvo.Scope) error {
	clear(e.computed)
	clear(e.failed)
	return nil
}

func (e *GraphDebugExtension) formatDependencyGraph(scope *kvo.Scope) string {
	return "\n" + renderTree(scope.Graph(), e.label) + "\n"
}

func (e *GraphDebugExtension) label(n kvo.Node) string {
	if err, failed := e.failed[n]; failed {
		return fmt.Sprintf("%s ❌ (error: %v)", n, err)
	}
	if e.computed[n] {
		return n.String() + " ✓"
	}
	return n.String()
}
