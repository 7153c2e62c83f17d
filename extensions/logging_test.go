package extensions

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/pumped-fn/kvo"
)

func TestLoggingExtension(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	scope := kvo.NewScope(kvo.WithExtension(NewLoggingExtension(logger)))

	acct := &account{Owner: "ada", Balance: 1}
	_ = scope.Init(acct)
	_, _ = kvo.Get(acct, "summary")
	_ = kvo.Set(acct, "balance", -1)

	output := buf.String()
	for _, want := range []string{
		`msg="init completed"`,
		`msg="get starting"`,
		"path=summary",
		"property=summary",
		"object=" + acct.ID().String(),
		`msg="recompute failed"`,
		"error=",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output:\n%s", want, output)
		}
	}
}

func TestNewLoggingExtension_DefaultLogger(t *testing.T) {
	ext := NewLoggingExtension(nil)
	if ext.logger == nil || ext.Name() != "logging" {
		t.Error("Expected a named extension with the default logger")
	}
}
