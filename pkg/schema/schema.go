// Package schema validates values written to computed properties
package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"

	"github.com/pumped-fn/kvo/pkg/proppath"
)

// ValidationError represents a validation error
type ValidationError struct {
	Message string
	// Path holds the segments leading to the offending value, outermost first
	Path []string
}

// Error returns the error message
func (e *ValidationError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s at %s", e.Message, proppath.Join(e.Path))
	}
	return e.Message
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// within prefixes the path of a nested ValidationError with seg
func within(seg string, err error) error {
	if verr, ok := err.(*ValidationError); ok {
		verr.Path = append([]string{seg}, verr.Path...)
	}
	return err
}

// Schema validates a value and may return it normalized
type Schema interface {
	Validate(value any) (any, error)
}

// Func adapts a function to Schema
type Func func(value any) (any, error)

// Validate calls f
func (f Func) Validate(value any) (any, error) {
	return f(value)
}

// StringSchema validates strings
type StringSchema struct {
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
}

// Validate validates a string
func (s *StringSchema) Validate(value any) (any, error) {
	str, ok := value.(string)
	if !ok {
		return nil, invalid("value of type %T is not a string", value)
	}

	if s.MinLength > 0 && len(str) < s.MinLength {
		return nil, invalid("string length %d is less than minimum length %d", len(str), s.MinLength)
	}
	if s.MaxLength > 0 && len(str) > s.MaxLength {
		return nil, invalid("string length %d is greater than maximum length %d", len(str), s.MaxLength)
	}
	if s.Pattern != nil && !s.Pattern.MatchString(str) {
		return nil, invalid("string %q does not match %s", str, s.Pattern)
	}

	return str, nil
}

// Matching sets the pattern the string must match
func (s *StringSchema) Matching(pattern string) *StringSchema {
	s.Pattern = regexp.MustCompile(pattern)
	return s
}

// Length bounds the string length; zero leaves a bound open
func (s *StringSchema) Length(min, max int) *StringSchema {
	s.MinLength, s.MaxLength = min, max
	return s
}

// NumberSchema validates numbers. Bounds are only checked when set through
// Range, so zero is a valid bound.
type NumberSchema struct {
	Min, Max       float64
	HasMin, HasMax bool
	Integer        bool
}

// Validate validates a number and returns it unchanged
func (s *NumberSchema) Validate(value any) (any, error) {
	num, ok := toFloat(value)
	if !ok {
		return nil, invalid("value of type %T is not a number", value)
	}

	if s.HasMin && num < s.Min {
		return nil, invalid("number %s is less than minimum %s", format(num), format(s.Min))
	}
	if s.HasMax && num > s.Max {
		return nil, invalid("number %s is greater than maximum %s", format(num), format(s.Max))
	}
	if s.Integer && num != float64(int64(num)) {
		return nil, invalid("number %s must be an integer", format(num))
	}

	return value, nil
}

// Range bounds the number inclusively
func (s *NumberSchema) Range(min, max float64) *NumberSchema {
	s.Min, s.Max = min, max
	s.HasMin, s.HasMax = true, true
	return s
}

// AtLeast sets an inclusive lower bound
func (s *NumberSchema) AtLeast(min float64) *NumberSchema {
	s.Min, s.HasMin = min, true
	return s
}

// Whole requires an integral value
func (s *NumberSchema) Whole() *NumberSchema {
	s.Integer = true
	return s
}

func toFloat(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func format(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// BooleanSchema validates booleans
type BooleanSchema struct{}

// Validate validates a boolean
func (s *BooleanSchema) Validate(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, invalid("value of type %T is not a boolean", value)
	}
	return b, nil
}

// ArraySchema validates slices and arrays
type ArraySchema struct {
	ItemSchema Schema
	MinItems   int
	MaxItems   int
}

// Validate validates every item. The result is a new slice of the same
// type holding the validated items.
func (s *ArraySchema) Validate(value any) (any, error) {
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return nil, invalid("value of type %T is not an array", value)
	}

	length := val.Len()
	if s.MinItems > 0 && length < s.MinItems {
		return nil, invalid("array length %d is less than minimum length %d", length, s.MinItems)
	}
	if s.MaxItems > 0 && length > s.MaxItems {
		return nil, invalid("array length %d is greater than maximum length %d", length, s.MaxItems)
	}
	if s.ItemSchema == nil {
		return value, nil
	}

	result := reflect.MakeSlice(reflect.SliceOf(val.Type().Elem()), 0, length)
	for i := 0; i < length; i++ {
		item, err := s.ItemSchema.Validate(val.Index(i).Interface())
		if err != nil {
			return nil, within(strconv.Itoa(i), err)
		}
		result = reflect.Append(result, valueOf(item, val.Type().Elem()))
	}
	return result.Interface(), nil
}

// ObjectSchema validates maps with string keys and structs by key
type ObjectSchema struct {
	Properties map[string]Schema
	Required   []string
}

// Validate checks required keys and validates the keys that have a
// schema. Maps are returned as a validated copy, structs unchanged.
func (s *ObjectSchema) Validate(value any) (any, error) {
	val := reflect.ValueOf(value)
	for val.Kind() == reflect.Pointer && !val.IsNil() {
		val = val.Elem()
	}

	var lookup func(key string) (reflect.Value, bool)
	switch {
	case val.Kind() == reflect.Map && val.Type().Key().Kind() == reflect.String:
		lookup = func(key string) (reflect.Value, bool) {
			v := val.MapIndex(reflect.ValueOf(key).Convert(val.Type().Key()))
			return v, v.IsValid()
		}
	case val.Kind() == reflect.Struct:
		lookup = func(key string) (reflect.Value, bool) {
			f := val.FieldByName(key)
			return f, f.IsValid() && f.CanInterface()
		}
	default:
		return nil, invalid("value of type %T is not an object", value)
	}

	for _, req := range s.Required {
		if _, ok := lookup(req); !ok {
			return nil, invalid("required property %s is missing", req)
		}
	}

	validated := make(map[string]any, len(s.Properties))
	for key, schema := range s.Properties {
		field, ok := lookup(key)
		if !ok {
			continue
		}
		v, err := schema.Validate(field.Interface())
		if err != nil {
			return nil, within(key, err)
		}
		validated[key] = v
	}

	if val.Kind() != reflect.Map {
		return value, nil
	}
	result := reflect.MakeMapWithSize(val.Type(), val.Len())
	iter := val.MapRange()
	for iter.Next() {
		v := iter.Value()
		if nv, ok := validated[iter.Key().String()]; ok {
			v = valueOf(nv, val.Type().Elem())
		}
		result.SetMapIndex(iter.Key(), v)
	}
	return result.Interface(), nil
}

// valueOf converts v for storage in a container of element type t
func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return rv
}

// Any accepts every value
func Any() Schema {
	return Func(func(value any) (any, error) { return value, nil })
}

// String creates a new string schema
func String() *StringSchema {
	return &StringSchema{}
}

// Number creates a new number schema
func Number() *NumberSchema {
	return &NumberSchema{}
}

// Boolean creates a new boolean schema
func Boolean() *BooleanSchema {
	return &BooleanSchema{}
}

// Array creates a new array schema
func Array(itemSchema Schema) *ArraySchema {
	return &ArraySchema{
		ItemSchema: itemSchema,
	}
}

// Object creates a new object schema
func Object(properties map[string]Schema, required ...string) *ObjectSchema {
	return &ObjectSchema{
		Properties: properties,
		Required:   required,
	}
}
