package extensions

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pumped-fn/kvo"
)

// LoggingExtension logs every operation at debug level and failures at
// error level
type LoggingExtension struct {
	kvo.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a new logging extension. A nil logger uses
// slog.Default().
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{
		BaseExtension: kvo.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func(context.Context) (any, error), op *kvo.Operation) (any, error) {
	start := time.Now()
	attrs := operationAttrs(op)
	e.logger.DebugContext(ctx, string(op.Kind)+" starting", attrs...)

	result, err := next(ctx)

	attrs = append(attrs, "duration", time.Since(start))
	if err != nil {
		e.logger.ErrorContext(ctx, string(op.Kind)+" failed", append(attrs, "error", err)...)
	} else {
		e.logger.DebugContext(ctx, string(op.Kind)+" completed", attrs...)
	}

	return result, err
}

func operationAttrs(op *kvo.Operation) []any {
	attrs := []any{"op", string(op.Kind)}
	if op.Path != "" {
		attrs = append(attrs, "path", op.Path)
	}
	if op.Key != "" {
		attrs = append(attrs, "property", op.Key)
	}
	if id, ok := objectID(op.Object); ok {
		attrs = append(attrs, "object", id.String())
	}
	return attrs
}

type identified interface {
	ID() uuid.UUID
}

// objectID returns the identity of objects embedding kvo.Observable
func objectID(obj any) (uuid.UUID, bool) {
	if o, ok := obj.(identified); ok {
		return o.ID(), true
	}
	return uuid.Nil, false
}
