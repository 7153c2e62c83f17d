package extensions

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/pumped-fn/kvo"
)

func TestGraphDebugExtension_OnError(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(&buf, slog.LevelError)

	scope := kvo.NewScope(
		kvo.WithExtension(NewGraphDebugExtension(handler)),
	)
	defer scope.Dispose()

	acct := &account{Owner: "ada", Balance: -5}
	if err := scope.Init(acct); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	_, err := kvo.Get(acct, "summary")
	if !errors.Is(err, errOverdrawn) {
		t.Fatalf("Expected overdrawn error, got %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		strings.Repeat("=", 70),
		"[GraphDebug] Property Error",
		"Failed: summary",
		"Error: property \"summary\" failed during get: overdrawn",
		"Operation: get",
		"Dependency Graph:",
		"owner@",
		"balance@",
		"❌ (error:",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output:\n%s", want, output)
		}
	}
}

func TestGraphDebugExtension_TracksComputedProperties(t *testing.T) {
	ext := NewGraphDebugExtension(NewSilentHandler())
	scope := kvo.NewScope(kvo.WithExtension(ext))
	defer scope.Dispose()

	acct := &account{Owner: "ada", Balance: 10}
	_ = scope.Init(acct)
	if _, err := kvo.Get(acct, "summary"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	n := kvo.Node{Object: &acct.Observable, Key: "summary"}
	if !ext.computed[n] {
		t.Error("Expected summary to be tracked as computed")
	}
	if !strings.Contains(ext.label(n), "✓") {
		t.Errorf("Expected a check mark in %q", ext.label(n))
	}

	// a failing recompute moves the node to failed
	_ = kvo.Set(acct, "balance", -1)
	if _, failed := ext.failed[n]; !failed {
		t.Error("Expected summary to be tracked as failed")
	}
	if ext.computed[n] {
		t.Error("Expected summary to no longer be computed")
	}
}

func TestHumanHandler_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHumanHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("hello", "key", "value")

	want := "[INFO] hello\n  key: value\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}

func TestHumanHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := NewHumanHandler(&buf, slog.LevelInfo)
	logger := slog.New(base.WithAttrs([]slog.Attr{slog.String("scope", "main")}))

	logger.Info("hello", "key", "value")

	want := "[INFO] hello\n  scope: main\n  key: value\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
	if base.WithAttrs(nil) != base {
		t.Error("Expected no attrs to return the same handler")
	}
}

func TestSilentHandler(t *testing.T) {
	h := NewSilentHandler()
	if h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Expected silent handler to be disabled")
	}
	if h.WithAttrs(nil) != h || h.WithGroup("g") != h {
		t.Error("Expected silent handler to return itself")
	}
}
