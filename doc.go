// Package kvo provides path-based property access and reactive computed
// properties for Go structs.
//
// # Overview
//
// kvo organizes code around four concepts:
//
//  1. Paths: string addresses into nested state, such as "user.tags[0]" or
//     "settings['display name']" (see package proppath)
//  2. Observables: structs embedding kvo.Observable, which gives them
//     computed properties and change events
//  3. Properties: functions that act as fields, optionally cached,
//     idempotent, and recomputed when their dependent keys change
//  4. Scopes: owners of the dependency graph, extensions and the queue for
//     deferred subscribers
//
// # Basic Usage
//
// Embed Observable and declare computed properties:
//
//	type Person struct {
//	    kvo.Observable
//	    First string
//	    Last  string
//	}
//
//	var personProperties = kvo.Properties{
//	    "fullName": kvo.NewProperty(func(ctx *kvo.PropertyCtx) (any, error) {
//	        p := ctx.Object.(*Person)
//	        return p.First + " " + p.Last, nil
//	    }, "first", "last").Cacheable(),
//	}
//
//	func (p *Person) Properties() kvo.Properties { return personProperties }
//
// Activate the object, then read and write through paths:
//
//	p := &Person{First: "Ada", Last: "Lovelace"}
//	if err := kvo.InitObservable(p); err != nil {
//	    return err
//	}
//
//	name, _ := kvo.Get(p, "fullName")   // "Ada Lovelace", computed once
//	_ = kvo.Set(p, "last", "Byron")     // fullName recomputes before Set returns
//
// Struct fields answer to their Go name, the name with a lowercase first
// letter, or a `kvo:"name"` tag. Maps with string or integer keys, slices
// and arrays are traversed too. Keys that are none of these are handed to
// the object's UnknownProperty method; the default stores written values
// on the Observable.
//
// # Property Modes
//
//	// Computed: the function runs on every read and write
//	kvo.NewProperty(fn, "a")
//
//	// Cacheable: reads are memoized until the property or a dependency is set
//	kvo.NewProperty(fn, "a").Cacheable()
//
//	// Idempotent: a write equal to the previous write is dropped entirely,
//	// with no function call and no change event
//	kvo.NewProperty(fn).Idempotent()
//
// The function sees the mode of the call through ctx.Value:
//
//	kvo.NewProperty(func(ctx *kvo.PropertyCtx) (any, error) {
//	    if v, ok := ctx.Value(); ok {
//	        return strings.TrimSpace(v.(string)), nil
//	    }
//	    return "default", nil
//	})
//
// # Change Events
//
// Every successful Set publishes (key, value) on the object that owns the
// key. Subscribers registered with Observe are deferred to the scope's
// queue unless they ask to run synchronously:
//
//	kvo.Observe(p, "fullName", func(ctx context.Context, ev pubsub.Event) error {
//	    fmt.Println("now", ev.Arg(0))
//	    return nil
//	})
//	kvo.Flush() // runs deferred subscribers
//
// Dependency propagation itself is always synchronous and depth first.
//
// # Controllers
//
//	ctrl := kvo.Accessor(p, "fullName")
//	val, err := ctrl.Get()
//	val, ok := ctrl.Peek()   // cached value only
//	ctrl.Release()           // drop the cache
//
//	name := kvo.Bind[string](p, "fullName")
//	s, err := name.Get()
//
// # Scopes and Extensions
//
//	scope := kvo.NewScope(
//	    kvo.WithLogger(slog.Default()),
//	    kvo.WithExtension(extensions.NewLoggingExtension(slog.Default())),
//	    kvo.WithRoot("App", app),
//	)
//	err := scope.Init(p)
//
// Init rejects dependency cycles with a *CycleError. A recompute chain deeper
// than the scope's MaxDepth fails with ErrDepthExceeded.
//
// A Scope and the objects initialized in it are not safe for concurrent use.
package kvo
