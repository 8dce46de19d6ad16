package frame

import (
	"math"
	"reflect"

	"github.com/fatih/structs"
	"github.com/mitchellh/mapstructure"
)

const (
	// VersionKey is reserved. Encode injects it; callers must not set it.
	VersionKey = "v"

	DefaultVersion = 1
)

// Header is the structured metadata carried in a frame's payload.
// It is an open mapping: consumers must tolerate keys they don't know.
type Header map[string]any

// Version returns the value of the reserved version key, or 0 if the
// header is empty (e.g. the marker-mismatch fallback).
func (h Header) Version() int {
	v, ok := h.Int(VersionKey)
	if !ok {
		return 0
	}
	return v
}

func (h Header) String(key string) (value string, ok bool) {
	value, ok = h[key].(string)
	return
}

func (h Header) Bool(key string) (value bool, ok bool) {
	value, ok = h[key].(bool)
	return
}

// Int returns the value at key as an int. JSON numbers decode as
// float64, so both forms are accepted.
func (h Header) Int(key string) (int, bool) {
	switch v := h[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func (h Header) Float(key string) (value float64, ok bool) {
	value, ok = h[key].(float64)
	return
}

// Decode maps the header onto v, which must be a pointer to a struct or
// a map. Fields match by json tag; JSON numbers (float64) convert to
// the target's numeric type.
func (h Header) Decode(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(h))
}

// HeaderOf converts v into a Header. Maps are used as is; structs (and
// pointers to structs) are flattened using their json tags. Anything
// else yields an empty header.
func HeaderOf(v any) Header {
	switch v := v.(type) {
	case nil:
		return Header{}
	case Header:
		return v
	case map[string]any:
		return Header(v)
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Header{}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return Header{}
	}
	s := structs.New(rv.Interface())
	s.TagName = "json"
	return Header(s.Map())
}

// checkValue rejects anything outside the JSON value union before
// serialization, so that Encode fails deterministically instead of
// depending on the configured serializer's behavior.
func checkValue(v any) error {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrNotSerializable
		}
		return nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := checkValue(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return ErrNotSerializable
		}
		iter := rv.MapRange()
		for iter.Next() {
			if err := checkValue(iter.Value().Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() || jsonTagName(field) == "-" {
				continue
			}
			if err := checkValue(rv.Field(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return checkValue(rv.Elem().Interface())
	}
	return ErrNotSerializable
}

// jsonTagName extracts the name part of a field's json tag. Fields
// named "-" are skipped by every serializer and so don't need to be
// representable.
func jsonTagName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	return tag
}
