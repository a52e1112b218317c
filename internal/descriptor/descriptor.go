// Package descriptor models records returned by OS management queries.
//
// OS APIs (WMI in particular) hand back partially populated records. A
// Descriptor exposes its fields in a fixed order so callers can ask whether
// a single value, or the whole record, carries any information at all.
package descriptor

import (
	"fmt"
	"reflect"
)

// UnknownValue is the sentinel used both by OS queries and for display.
const UnknownValue = "Unknown"

type Field struct {
	Name  string
	Value any
}

type Descriptor interface {
	Fields() []Field
}

// IsUndefinedValue reports whether v is nil, false, numeric zero or UnknownValue.
//
// Pointer fields model nullable columns: a nil pointer is undefined, a present
// value is defined unless it is the UnknownValue text. Disk index 0 is a real
// disk, so present zeros count.
func IsUndefinedValue(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		elem := rv.Elem()
		return elem.Kind() == reflect.String && elem.String() == UnknownValue
	case reflect.Slice, reflect.Map:
		return rv.IsNil()
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.String:
		return rv.String() == UnknownValue
	default:
		return false
	}
}

// IsUndefinedDataObject reports whether every field of d is undefined.
func IsUndefinedDataObject(d Descriptor) bool {
	for _, f := range d.Fields() {
		if !IsUndefinedValue(f.Value) {
			return false
		}
	}

	return true
}

// RetainValueOrDefault formats v, or returns UnknownValue when v is undefined.
func RetainValueOrDefault(v any) string {
	if IsUndefinedValue(v) {
		return UnknownValue
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}

	return fmt.Sprint(rv.Interface())
}

// AsMap flattens d to display text keyed by field name.
func AsMap(d Descriptor) map[string]string {
	fields := d.Fields()
	out := make(map[string]string, len(fields))

	for _, f := range fields {
		out[f.Name] = RetainValueOrDefault(f.Value)
	}

	return out
}

// Get returns the value of the named field.
func Get(d Descriptor, name string) (any, bool) {
	for _, f := range d.Fields() {
		if f.Name == name {
			return f.Value, true
		}
	}

	return nil, false
}

// String dereferences a nullable text column, returning "" for nil or UnknownValue.
func String(s *string) string {
	if s == nil || *s == UnknownValue {
		return ""
	}

	return *s
}
