package ir

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies the concrete type behind a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
)

// String returns the lowercase kind name used in logs and errors.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a sealed scalar. Filter values, plan parameters, result cells and
// aggregate results are all carried as Values.
// Only Null, String, Int, Float, Bool and Time implement it.
type Value interface {
	Kind() Kind
	scalar()
}

// Null is the SQL NULL / JSON null scalar.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) scalar()    {}

// String is a text scalar.
type String string

func (String) Kind() Kind { return KindString }
func (String) scalar()    {}

// Int is a 64-bit integer scalar.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) scalar()    {}

// Float is a 64-bit floating point scalar. NaN and infinities are not
// representable in canonical output.
type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) scalar()    {}

// Bool is a boolean scalar.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) scalar()    {}

// Time is a timestamp scalar, always normalized to UTC.
type Time time.Time

func (Time) Kind() Kind { return KindTime }
func (Time) scalar()    {}

// NewTime returns a Time normalized to UTC.
func NewTime(t time.Time) Time {
	return Time(t.UTC())
}

// Strings wraps plain strings as Values, preserving order.
func Strings(ss ...string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

// FromAny converts a Go or database/sql driver value into a Value.
// []byte is treated as text, which is how SQLite returns TEXT columns
// declared without a type.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case []byte:
		return String(string(val)), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case bool:
		return Bool(val), nil
	case time.Time:
		return NewTime(val), nil
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", v)
	}
}

// ToAny converts a Value into the Go value handed to database drivers.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return time.Time(val)
	default:
		return nil
	}
}

// Text renders a Value as plain text. Null renders as the empty string.
// Distinct-value maps and aggregate grouping keys are keyed by Text.
func Text(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return formatFloat(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case Time:
		return time.Time(val).Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// AsFloat returns the numeric value of Int and Float scalars.
func AsFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		return float64(val), true
	default:
		return 0, false
	}
}

// Compare orders two Values. Int and Float compare numerically with each
// other; other kinds only compare with the same kind. Null sorts first.
func Compare(a, b Value) (int, error) {
	if isNull(a) || isNull(b) {
		switch {
		case isNull(a) && isNull(b):
			return 0, nil
		case isNull(a):
			return -1, nil
		default:
			return 1, nil
		}
	}

	if af, ok := AsFloat(a); ok {
		bf, ok := AsFloat(b)
		if !ok {
			return 0, fmt.Errorf("cannot compare %s with %s", a.Kind(), b.Kind())
		}
		return cmpOrdered(af, bf), nil
	}

	if a.Kind() != b.Kind() {
		return 0, fmt.Errorf("cannot compare %s with %s", a.Kind(), b.Kind())
	}

	switch av := a.(type) {
	case String:
		return cmpOrdered(string(av), string(b.(String))), nil
	case Bool:
		bv := bool(b.(Bool))
		switch {
		case bool(av) == bv:
			return 0, nil
		case !bool(av):
			return -1, nil
		default:
			return 1, nil
		}
	case Time:
		return time.Time(av).Compare(time.Time(b.(Time))), nil
	default:
		return 0, fmt.Errorf("cannot compare %s values", a.Kind())
	}
}

func isNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

func cmpOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// formatFloat renders floats the way ECMAScript Number.prototype.toString
// does for the ranges that matter here: plain decimal between 1e-6 and 1e21,
// exponent form outside it.
func formatFloat(f float64) string {
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}
