package kvo

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"sync"
	"unicode"
	"unicode/utf8"
)

// fieldIndex caches, per struct type, the field index path for every key a
// field answers to
var fieldIndex sync.Map // reflect.Type -> map[string][]int

var observableType = reflect.TypeOf(Observable{})

func fieldsOf(t reflect.Type) map[string][]int {
	if cached, ok := fieldIndex.Load(t); ok {
		return cached.(map[string][]int)
	}

	fields := make(map[string][]int)
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() || f.Type == observableType {
			continue
		}
		tag := f.Tag.Get("kvo")
		if tag == "-" {
			continue
		}
		if tag != "" {
			fields[tag] = f.Index
			continue
		}
		fields[f.Name] = f.Index
		if lower := lowerFirst(f.Name); lower != f.Name {
			if _, taken := fields[lower]; !taken {
				fields[lower] = f.Index
			}
		}
	}

	actual, _ := fieldIndex.LoadOrStore(t, fields)
	return actual.(map[string][]int)
}

// fieldKeys returns key followed by the other keys naming the same struct
// field on obj
func fieldKeys(obj any, key string) []string {
	keys := []string{key}
	v := indirect(reflect.ValueOf(obj))
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return keys
	}
	fields := fieldsOf(v.Type())
	index, ok := fields[key]
	if !ok {
		return keys
	}
	for k, other := range fields {
		if k != key && slices.Equal(other, index) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys[1:])
	return keys
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[n:]
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func structField(v reflect.Value, key string) (reflect.Value, bool) {
	index, ok := fieldsOf(v.Type())[key]
	if !ok {
		return reflect.Value{}, false
	}
	f, err := v.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}, false
	}
	return f, true
}

func mapKey(v reflect.Value, key string) (reflect.Value, bool) {
	kt := v.Type().Key()
	switch kt.Kind() {
	case reflect.String:
		return reflect.ValueOf(key).Convert(kt), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(key, 10, kt.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(kt), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(key, 10, kt.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(n).Convert(kt), true
	}
	return reflect.Value{}, false
}

func sliceIndex(v reflect.Value, key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 || n >= v.Len() {
		return 0, false
	}
	return n, true
}

// readField reads key from a struct, map, slice or array, following
// pointers. It reports false when obj has no such key.
func readField(obj any, key string) (any, bool) {
	v := indirect(reflect.ValueOf(obj))
	if !v.IsValid() {
		return nil, false
	}

	switch v.Kind() {
	case reflect.Struct:
		f, ok := structField(v, key)
		if !ok {
			return nil, false
		}
		return f.Interface(), true
	case reflect.Map:
		k, ok := mapKey(v, key)
		if !ok {
			return nil, false
		}
		mv := v.MapIndex(k)
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Slice, reflect.Array:
		i, ok := sliceIndex(v, key)
		if !ok {
			return nil, false
		}
		return v.Index(i).Interface(), true
	}
	return nil, false
}

// writeField assigns key on obj. It reports false when obj has no such key
// and an error when the key exists but cannot take value. Map keys always
// exist for writing.
func writeField(obj any, key string, value any) (bool, error) {
	v := indirect(reflect.ValueOf(obj))
	if !v.IsValid() {
		return false, nil
	}

	switch v.Kind() {
	case reflect.Struct:
		f, ok := structField(v, key)
		if !ok {
			return false, nil
		}
		if !f.CanSet() {
			return true, fmt.Errorf("%w: field %q of %s is not addressable", ErrNotSettable, key, v.Type())
		}
		return true, assign(f, key, value)
	case reflect.Map:
		k, ok := mapKey(v, key)
		if !ok {
			return false, nil
		}
		if v.IsNil() {
			return true, fmt.Errorf("%w: nil map", ErrNotSettable)
		}
		elem := reflect.New(v.Type().Elem()).Elem()
		if err := assign(elem, key, value); err != nil {
			return true, err
		}
		v.SetMapIndex(k, elem)
		return true, nil
	case reflect.Slice, reflect.Array:
		i, ok := sliceIndex(v, key)
		if !ok {
			return false, nil
		}
		elem := v.Index(i)
		if !elem.CanSet() {
			return true, fmt.Errorf("%w: element %s of %s is not addressable", ErrNotSettable, key, v.Type())
		}
		return true, assign(elem, key, value)
	}
	return false, nil
}

func assign(dst reflect.Value, key string, value any) error {
	if value == nil || IsUndefined(value) {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case isNumeric(rv.Kind()) && isNumeric(dst.Kind()):
		dst.Set(rv.Convert(dst.Type()))
	default:
		return fmt.Errorf("%w: cannot assign %T to %q of type %s", ErrNotSettable, value, key, dst.Type())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// sameValue compares by value where Go can, and by identity for maps,
// slices, funcs and pointers
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return safeEqual(a, b)
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		if va.Kind() == reflect.Slice && va.Len() != vb.Len() {
			return false
		}
		return va.Pointer() == vb.Pointer()
	}
	return false
}

// safeEqual compares comparable types whose fields may still hold
// incomparable values behind interfaces
func safeEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}
