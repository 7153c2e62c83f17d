package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// propertyErrorMsg is the record GraphDebugExtension emits; HumanHandler
// draws it as a banner instead of a key list
const propertyErrorMsg = "Property Error"

// SilentHandler drops every record. Tests pass it to extensions whose
// output they don't check.
type SilentHandler struct{}

// NewSilentHandler creates a SilentHandler
func NewSilentHandler() *SilentHandler { return &SilentHandler{} }

func (h *SilentHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (h *SilentHandler) Handle(context.Context, slog.Record) error { return nil }
func (h *SilentHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h *SilentHandler) WithGroup(string) slog.Handler             { return h }

// HumanHandler writes one "[LEVEL] message" line per record followed by an
// indented line per attribute. Property errors from GraphDebugExtension get
// a framed block with the dependency tree.
type HumanHandler struct {
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

// NewHumanHandler writes records at level or above to w
func NewHumanHandler(w io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{w: w, level: level}
}

func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	var sb strings.Builder
	if r.Message == propertyErrorMsg {
		writeBanner(&sb, attrs)
	} else {
		fmt.Fprintf(&sb, "[%s] %s\n", r.Level, r.Message)
		for _, a := range attrs {
			fmt.Fprintf(&sb, "  %s: %v\n", a.Key, a.Value)
		}
	}

	_, err := io.WriteString(h.w, sb.String())
	return err
}

// WithAttrs returns a handler that prints attrs before each record's own
func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup is a no-op; group names add nothing to the plain layout
func (h *HumanHandler) WithGroup(string) slog.Handler {
	return h
}

func writeBanner(sb *strings.Builder, attrs []slog.Attr) {
	field := func(key string) string {
		for _, a := range attrs {
			if a.Key == key {
				return a.Value.String()
			}
		}
		return ""
	}

	rule := strings.Repeat("=", 70)
	fmt.Fprintf(sb, "\n%s\n[GraphDebug] %s\n%s\n", rule, propertyErrorMsg, rule)
	fmt.Fprintf(sb, "\nFailed: %s\n", field("target"))
	fmt.Fprintf(sb, "Error: %s\n", field("error"))
	fmt.Fprintf(sb, "Operation: %s\n", field("operation"))
	fmt.Fprintf(sb, "\nDependency Graph:%s%s\n\n", field("dependency_graph"), rule)
}
