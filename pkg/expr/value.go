// Package expr implements the small embedded expression language used throughout the
// rule catalog: boolean conditions over variable metadata, numeric value expressions
// over a single free parameter "level", and template strings that interpolate value
// expressions into literal text. The language is deliberately narrow — arithmetic,
// comparison, boolean connectives, and named parameter lookup only. No loops, no
// attribute access, no I/O.
package expr

import (
	"fmt"
	"strconv"
)

// Kind identifies which branch of Value is populated.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
)

// Value is the tagged-union runtime value every expression produces and every
// environment binding carries.
type Value struct {
	Kind   Kind
	Int    int64
	Float  float64
	Bool   bool
	String string
}

func Int(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func Bool(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func Str(v string) Value    { return Value{Kind: KindString, String: v} }

// IsNumeric reports whether v holds an int or float.
func (v Value) IsNumeric() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// AsFloat widens an int or float value to float64. Panics are never raised; callers
// must check IsNumeric first (the evaluator always does).
func (v Value) AsFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// Render renders the value the way a template substitution would: integers without a
// decimal point, floats trimmed of trailing zeros, booleans as "true"/"false".
func (v Value) Render() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindString:
		return v.String
	default:
		return ""
	}
}

// Env is the parameter environment expressions are evaluated against: condition
// expressions bind "variable_name"/"key"; value expressions bind "level".
type Env map[string]Value

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

func (v Value) GoString() string {
	return fmt.Sprintf("%s(%s)", v.Kind.String(), v.Render())
}
