package kvo

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pumped-fn/kvo/pkg/proppath"
)

// Get reads path from obj. A path that does not tokenize is an error; a
// path through missing values is not, and yields the root's
// UnknownProperty result or Undefined.
func Get(obj any, path string) (any, error) {
	return scopeOf(obj).GetContext(context.Background(), obj, path)
}

// GetContext is Get with a context passed to property functions and extensions
func GetContext(ctx context.Context, obj any, path string) (any, error) {
	return scopeOf(obj).GetContext(ctx, obj, path)
}

// GetPath is Get; a single key is a path of length one
func GetPath(obj any, path string) (any, error) {
	return Get(obj, path)
}

// Set writes value at path on obj and publishes the change on the parent
// object. A malformed path fails before anything is written.
func Set(obj any, path string, value any) error {
	return scopeOf(obj).SetContext(context.Background(), obj, path, value)
}

// SetContext is Set with a context passed to property functions and extensions
func SetContext(ctx context.Context, obj any, path string, value any) error {
	return scopeOf(obj).SetContext(ctx, obj, path, value)
}

// SetPath is Set; a single key is a path of length one
func SetPath(obj any, path string, value any) error {
	return Set(obj, path, value)
}

// Get reads path from obj within the scope
func (s *Scope) Get(obj any, path string) (any, error) {
	return s.GetContext(context.Background(), obj, path)
}

// GetContext reads path from obj within the scope
func (s *Scope) GetContext(ctx context.Context, obj any, path string) (any, error) {
	segs, err := proppath.Tokenize(path)
	if err != nil {
		return nil, err
	}

	op := &Operation{Kind: OpGet, Object: obj, Path: path}
	return s.wrap(ctx, op, func(ctx context.Context) (any, error) {
		parent, err := s.walk(ctx, obj, segs[:len(segs)-1])
		if err != nil {
			return nil, err
		}
		if missing(parent) {
			return s.unknownGet(ctx, obj, path)
		}
		return s.getKey(ctx, parent, segs[len(segs)-1])
	})
}

// Set writes value at path on obj within the scope
func (s *Scope) Set(obj any, path string, value any) error {
	return s.SetContext(context.Background(), obj, path, value)
}

// SetContext writes value at path on obj within the scope
func (s *Scope) SetContext(ctx context.Context, obj any, path string, value any) error {
	segs, err := proppath.Tokenize(path)
	if err != nil {
		return err
	}

	op := &Operation{Kind: OpSet, Object: obj, Path: path, Value: value}
	_, err = s.wrap(ctx, op, func(ctx context.Context) (any, error) {
		parent, err := s.walk(ctx, obj, segs[:len(segs)-1])
		if err != nil {
			return nil, err
		}
		if missing(parent) {
			return nil, s.unknownSet(ctx, obj, path, value)
		}
		return nil, s.setKey(ctx, parent, segs[len(segs)-1], value)
	})
	return err
}

// walk folds single-key reads over segs. It stops at the first missing
// value and returns it.
func (s *Scope) walk(ctx context.Context, obj any, segs []string) (any, error) {
	cur := obj
	for _, seg := range segs {
		if missing(cur) {
			return cur, nil
		}
		v, err := s.getKey(ctx, cur, seg)
		if err != nil {
			return nil, err
		}
		cur = v
	}
	return cur, nil
}

func missing(v any) bool {
	if v == nil || IsUndefined(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func (s *Scope) getKey(ctx context.Context, obj any, key string) (any, error) {
	h, isHost := obj.(Host)
	if isHost {
		o := h.observable()
		if d := o.descriptor(key); d != nil {
			return s.getComputed(ctx, obj, o, key, d)
		}
	}

	if v, ok := readField(obj, key); ok {
		return v, nil
	}
	if isHost {
		if v, ok := h.observable().stored(key); ok {
			return v, nil
		}
	}
	return s.unknownGet(ctx, obj, key)
}

func (s *Scope) setKey(ctx context.Context, obj any, key string, value any) error {
	h, isHost := obj.(Host)
	if isHost {
		o := h.observable()
		if d := o.descriptor(key); d != nil {
			stored, changed, err := s.setComputed(ctx, obj, o, key, d, value)
			if err != nil || !changed {
				return err
			}
			return o.Publish(ctx, key, stored)
		}
	}

	handled, err := writeField(obj, key, value)
	if err != nil {
		return err
	}
	if !handled {
		if err := s.unknownSet(ctx, obj, key, value); err != nil {
			return err
		}
	}

	if !isHost {
		return nil
	}
	o := h.observable()
	if !handled {
		return o.Publish(ctx, key, value)
	}
	for _, k := range fieldKeys(obj, key) {
		if err := o.Publish(ctx, k, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) getComputed(ctx context.Context, obj any, o *Observable, key string, d *descriptor) (any, error) {
	m := o.meta(true)
	switch d.mode {
	case modeCached, modeCachedIdempotent:
		if v, ok := m.cache.Load(key); ok {
			return v, nil
		}
		v, err := s.invoke(ctx, obj, key, d, nil, false)
		if err != nil {
			return nil, err
		}
		m.cache.Store(key, v)
		return v, nil
	case modeComputed, modeIdempotent:
		return s.invoke(ctx, obj, key, d, nil, false)
	}
	panic(fmt.Sprintf("kvo: unhandled access mode %s", d.mode))
}

// setComputed applies a write to a computed property. changed is false when
// an idempotent property saw the same value again.
func (s *Scope) setComputed(ctx context.Context, obj any, o *Observable, key string, d *descriptor, value any) (stored any, changed bool, err error) {
	if sch := d.prop.schema; sch != nil {
		if value, err = sch.Validate(value); err != nil {
			return nil, false, newPropertyError(key, OpSet, err)
		}
	}

	m := o.meta(true)
	switch d.mode {
	case modeIdempotent, modeCachedIdempotent:
		if last, ok := m.lastSet.Load(key); ok && sameValue(last, value) {
			return nil, false, nil
		}
		stored, err = s.invoke(ctx, obj, key, d, value, true)
		if err != nil {
			return nil, false, err
		}
		m.lastSet.Store(key, value)
		if d.mode == modeCachedIdempotent {
			m.cache.Store(key, stored)
		}
	case modeCached:
		m.cache.Delete(key)
		stored, err = s.invoke(ctx, obj, key, d, value, true)
		if err != nil {
			return nil, false, err
		}
		m.cache.Store(key, stored)
	case modeComputed:
		stored, err = s.invoke(ctx, obj, key, d, value, true)
		if err != nil {
			return nil, false, err
		}
	default:
		panic(fmt.Sprintf("kvo: unhandled access mode %s", d.mode))
	}
	return stored, true, nil
}

func (s *Scope) invoke(ctx context.Context, obj any, key string, d *descriptor, value any, setting bool) (any, error) {
	op := &Operation{Kind: OpInvoke, Object: obj, Key: key, Value: value}
	return s.wrap(ctx, op, func(ctx context.Context) (any, error) {
		pctx := &PropertyCtx{
			ctx:     ctx,
			scope:   s,
			Key:     key,
			Object:  obj,
			value:   value,
			setting: setting,
		}
		v, err := d.prop.fn(pctx)
		if err != nil {
			kind := OpGet
			if setting {
				kind = OpSet
			}
			return nil, newPropertyError(key, kind, err)
		}
		return v, nil
	})
}

func (s *Scope) unknownGet(ctx context.Context, obj any, key string) (any, error) {
	if h, ok := obj.(UnknownPropertyHandler); ok {
		return h.UnknownProperty(key)
	}
	return Undefined, nil
}

func (s *Scope) unknownSet(ctx context.Context, obj any, key string, value any) error {
	if h, ok := obj.(UnknownPropertyHandler); ok {
		_, err := h.UnknownProperty(key, value)
		return err
	}
	return fmt.Errorf("%w: %T has no key %q", ErrNotSettable, obj, key)
}
