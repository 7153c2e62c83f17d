package extensions

import (
	"strings"
	"testing"

	"github.com/pumped-fn/kvo"
)

func TestRenderDependencyTree(t *testing.T) {
	scope := kvo.NewScope()
	if got := RenderDependencyTree(scope); got != "(no dependencies)" {
		t.Errorf("Expected empty marker, got %q", got)
	}

	obj := &kvo.Observable{}
	noop := func(*kvo.PropertyCtx) (any, error) { return nil, nil }
	_ = obj.Define("b", kvo.NewProperty(noop, "a"))
	_ = obj.Define("c", kvo.NewProperty(noop, "a", "b"))
	if err := scope.Init(obj); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	out := RenderDependencyTree(scope)
	id := obj.ID().String()[:8]
	for _, key := range []string{"scope", "a@" + id, "b@" + id, "c@" + id} {
		if !strings.Contains(out, key) {
			t.Errorf("Expected %q in tree:\n%s", key, out)
		}
	}
	// c sits under a directly and under b
	if n := strings.Count(out, "c@"+id); n != 2 {
		t.Errorf("Expected c twice, got %d:\n%s", n, out)
	}
}
