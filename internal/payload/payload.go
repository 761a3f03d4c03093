// Package payload reads loosely typed JSON objects returned by model
// collaborators. Every getter substitutes a default when the key is missing
// or holds a value of the wrong shape.
package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Object is a decoded JSON object.
type Object map[string]any

// String returns the trimmed string at key. Numbers and booleans are
// formatted; null, objects and arrays yield def.
func (o Object) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool, int, int64:
		return fmt.Sprint(t)
	}
	return def
}

// Float returns the number at key; numeric strings are parsed.
func (o Object) Float(key string, def float64) float64 {
	switch t := o[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

// Int returns the integer at key, truncating fractional numbers.
func (o Object) Int(key string, def int) int {
	switch t := o[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
	}
	return def
}

// Object returns the nested object at key, or nil.
func (o Object) Object(key string) Object {
	if m, ok := o[key].(map[string]any); ok {
		return Object(m)
	}
	if m, ok := o[key].(Object); ok {
		return m
	}
	return nil
}

// Objects returns the elements of the array at key that are objects.
func (o Object) Objects(key string) []Object {
	list, _ := o[key].([]any)
	out := make([]Object, 0, len(list))
	for _, it := range list {
		if m, ok := it.(map[string]any); ok {
			out = append(out, Object(m))
		}
	}
	return out
}

// Strings returns the non-blank scalar elements of the array at key.
func (o Object) Strings(key string) []string {
	list, _ := o[key].([]any)
	var out []string
	for _, it := range list {
		s := Object{"v": it}.String("v", "")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether key is present and not null.
func (o Object) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

// Decode converts any JSON-compatible value (a struct, a map) to an Object
// by round-tripping it through encoding/json.
func Decode(v any) (Object, error) {
	if m, ok := v.(map[string]any); ok {
		return Object(m), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return Object(out), nil
}
