package kvo

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pumped-fn/kvo/pkg/schema"
)

func TestProperty_CacheableReadsComputeOnce(t *testing.T) {
	obj := &Observable{}
	calls := 0
	if err := obj.Define("p", counting(&calls).Cacheable()); err != nil {
		t.Fatalf("Define failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		v, err := Get(obj, "p")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v != 1 {
			t.Errorf("Expected cached 1, got %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("Expected 1 invocation for 4 reads, got %d", calls)
	}

	if err := Set(obj, "p", "x"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 1 more invocation for the set, got %d", calls)
	}

	v, _ := Get(obj, "p")
	if v != "x" {
		t.Errorf("Expected the set result to be cached, got %v", v)
	}
	if calls != 2 {
		t.Errorf("Expected the read after set to hit the cache, got %d invocations", calls)
	}
}

func TestProperty_ComputedRunsEveryTime(t *testing.T) {
	obj := &Observable{}
	calls := 0
	_ = obj.Define("p", counting(&calls))

	for i := 1; i <= 3; i++ {
		v, _ := Get(obj, "p")
		if v != i {
			t.Errorf("Read %d: expected %d, got %v", i, i, v)
		}
	}
}

func TestProperty_IdempotentSkipsRepeatedValue(t *testing.T) {
	obj := &Observable{}
	calls, events := 0, 0
	_ = obj.Define("p", counting(&calls).Idempotent())
	if _, err := obj.Subscribe("p", countEvents(&events), syncDelivery()); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		value      any
		wantCalls  int
		wantEvents int
	}{
		{"a", 1, 1},
		{"a", 1, 1},
		{"b", 2, 2},
		{"a", 3, 3},
		{"a", 3, 3},
	}
	for i, step := range steps {
		if err := Set(obj, "p", step.value); err != nil {
			t.Fatalf("step %d: Set failed: %v", i, err)
		}
		if calls != step.wantCalls || events != step.wantEvents {
			t.Errorf("step %d: calls=%d events=%d, want %d and %d",
				i, calls, events, step.wantCalls, step.wantEvents)
		}
	}
}

func TestProperty_IdempotentComparesReferences(t *testing.T) {
	obj := &Observable{}
	calls := 0
	_ = obj.Define("p", counting(&calls).Idempotent())

	m := map[string]int{"a": 1}
	_ = Set(obj, "p", m)
	_ = Set(obj, "p", m)
	if calls != 1 {
		t.Errorf("Expected same map to be skipped, got %d calls", calls)
	}

	_ = Set(obj, "p", map[string]int{"a": 1})
	if calls != 2 {
		t.Errorf("Expected an equal but distinct map to run, got %d calls", calls)
	}
}

func TestProperty_CachedIdempotent(t *testing.T) {
	obj := &Observable{}
	calls := 0
	_ = obj.Define("p", counting(&calls).Cacheable().Idempotent())

	_ = Set(obj, "p", "v")
	_ = Set(obj, "p", "v")
	v, _ := Get(obj, "p")

	if v != "v" {
		t.Errorf("Expected cached v, got %v", v)
	}
	if calls != 1 {
		t.Errorf("Expected 1 invocation, got %d", calls)
	}
}

func TestProperty_FlagsFrozenOnInstall(t *testing.T) {
	p := counting(new(int))
	obj := &Observable{}
	_ = obj.Define("p", p)

	defer func() {
		if recover() == nil {
			t.Error("Expected Cacheable on an installed property to panic")
		}
	}()
	p.Cacheable()
}

func TestProperty_NilFunctionIsNotCallable(t *testing.T) {
	obj := &Observable{}

	err := obj.Define("p", NewProperty(nil))
	var nerr *NotCallableError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NotCallableError, got %v", err)
	}
	if obj.HasProperty("p") {
		t.Error("Expected nothing installed")
	}
}

func TestProperty_MalformedDependentKey(t *testing.T) {
	obj := &Observable{}

	err := obj.Define("p", counting(new(int), "a..b"))
	var perr *MalformedPathError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected MalformedPathError, got %v", err)
	}
}

func TestProperty_ErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	obj := &Observable{}
	_ = obj.Define("p", NewProperty(func(ctx *PropertyCtx) (any, error) {
		return nil, boom
	}))

	tests := []struct {
		name string
		run  func() error
		op   OperationKind
	}{
		{"get", func() error { _, err := Get(obj, "p"); return err }, OpGet},
		{"set", func() error { return Set(obj, "p", 1) }, OpSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, boom) {
				t.Fatalf("Expected boom, got %v", err)
			}
			var perr *PropertyError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected PropertyError, got %T", err)
			}
			if perr.Key != "p" || perr.Op != tt.op {
				t.Errorf("Unexpected error fields %+v", perr)
			}
		})
	}
}

func TestProperty_FailedSetIsNotRemembered(t *testing.T) {
	obj := &Observable{}
	fail := false
	_ = obj.Define("p", NewProperty(func(ctx *PropertyCtx) (any, error) {
		if fail {
			return nil, errors.New("rejected")
		}
		if v, ok := ctx.Value(); ok {
			return v, nil
		}
		return "initial", nil
	}).Idempotent())

	_ = Set(obj, "p", "a")
	fail = true
	if err := Set(obj, "p", "b"); err == nil {
		t.Fatal("Expected set to fail")
	}
	fail = false

	// the failed value was not remembered, so setting it again runs
	events := 0
	_, _ = obj.Subscribe("p", countEvents(&events), syncDelivery())
	_ = Set(obj, "p", "b")
	if events != 1 {
		t.Errorf("Expected retry of b to publish, got %d events", events)
	}
}

func TestProperty_ContextAccessors(t *testing.T) {
	obj := &person{First: "Ada"}
	var seen []string
	_ = obj.Define("greeting", NewProperty(func(ctx *PropertyCtx) (any, error) {
		seen = append(seen, ctx.Key)
		if ctx.Context() == nil {
			t.Error("Expected a context")
		}
		if ctx.IsSet() {
			v, _ := ctx.Value()
			return nil, ctx.Set("first", v)
		}
		first, err := ctx.Get("first")
		return "hi " + first.(string), err
	}))

	v, _ := Get(obj, "greeting")
	if v != "hi Ada" {
		t.Errorf("Expected hi Ada, got %v", v)
	}
	_ = Set(obj, "greeting", "Grace")
	if obj.First != "Grace" {
		t.Errorf("Expected set through ctx to reach First, got %q", obj.First)
	}
	if !reflect.DeepEqual(seen, []string{"greeting", "greeting"}) {
		t.Errorf("Unexpected keys %v", seen)
	}
}

func TestProperty_DependentKeysCopied(t *testing.T) {
	keys := []string{"a", "b"}
	p := NewProperty(func(*PropertyCtx) (any, error) { return nil, nil }, keys...)
	keys[0] = "z"

	got := p.DependentKeys()
	got[1] = "y"
	if !reflect.DeepEqual(p.DependentKeys(), []string{"a", "b"}) {
		t.Errorf("Expected dependent keys to be isolated, got %v", p.DependentKeys())
	}
	if !p.IsProperty() || p.IsCacheable() || p.IsIdempotent() {
		t.Error("Unexpected flags on a new property")
	}
}

func TestAccessMode_String(t *testing.T) {
	tests := []struct {
		p    *Property
		want string
	}{
		{counting(new(int)), "computed"},
		{counting(new(int)).Cacheable(), "cached"},
		{counting(new(int)).Idempotent(), "idempotent"},
		{counting(new(int)).Cacheable().Idempotent(), "cached+idempotent"},
	}
	for _, tt := range tests {
		if got := tt.p.mode().String(); got != tt.want {
			t.Errorf("mode() = %s, want %s", got, tt.want)
		}
	}
}

func TestProperty_ValidateWrites(t *testing.T) {
	obj := &Observable{}
	calls := 0
	_ = obj.Define("age", counting(&calls).Validate(schema.Number().Range(0, 150).Whole()))

	if err := Set(obj, "age", 42); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	err := Set(obj, "age", -3)
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	var perr *PropertyError
	if !errors.As(err, &perr) || perr.Op != OpSet {
		t.Errorf("Expected a set PropertyError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected the rejected write not to run the function, got %d calls", calls)
	}
}
