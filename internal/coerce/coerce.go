// Package coerce converts loosely-typed upstream payload values into
// nullable Go values. The bulletin provider omits and renames fields across
// revisions, so nothing here assumes presence or type.
package coerce

import (
	"math"
	"strconv"
	"strings"
)

// Bool reports whether v represents an affirmative flag: boolean true,
// the string "true" in any casing, or the number 1. Everything else,
// including absent values, is false.
func Bool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	case float64:
		return t == 1
	case int:
		return t == 1
	case int64:
		return t == 1
	}
	return false
}

// Float returns v as a float64 when it is a finite number or a parseable
// numeric string, and nil otherwise. Empty and whitespace-only strings
// are nil, not zero.
func Float(v any) *float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return &t
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
	return nil
}

// Int is Float truncated toward zero.
func Int(v any) *int {
	f := Float(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// String returns the trimmed string form of v, or nil when v is absent,
// empty, or not representable as text.
func String(v any) *string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		return &s
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case int:
		s := strconv.Itoa(t)
		return &s
	case int64:
		s := strconv.FormatInt(t, 10)
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	}
	return nil
}
