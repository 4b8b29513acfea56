package planner

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/schema"
)

// timeLayouts are tried in order when coercing to TypeTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerce converts v to the declared type of field. Values that are already
// of the right kind pass through. On failure the original value is returned
// with an InvalidValue error.
func coerce(path string, field *schema.Field, v ir.Value) (ir.Value, error) {
	if _, ok := v.(ir.Null); ok || v == nil {
		return ir.Null{}, nil
	}

	text := ir.Text(v)
	fail := func(cause error) (ir.Value, error) {
		return v, ir.NewInvalidValueError(path, text, string(field.Type), cause)
	}

	switch field.Type {
	case schema.TypeInt:
		if _, ok := v.(ir.Int); ok {
			return v, nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return fail(err)
		}
		return ir.Int(n), nil

	case schema.TypeFloat:
		if f, ok := ir.AsFloat(v); ok {
			return ir.Float(f), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return fail(err)
		}
		return ir.Float(f), nil

	case schema.TypeBool:
		if _, ok := v.(ir.Bool); ok {
			return v, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return fail(err)
		}
		return ir.Bool(b), nil

	case schema.TypeTime:
		if _, ok := v.(ir.Time); ok {
			return v, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
				return ir.NewTime(t), nil
			}
		}
		return fail(errors.New("expected RFC 3339, 2006-01-02 15:04:05 or 2006-01-02"))

	case schema.TypeEnum:
		for _, e := range field.Enum {
			if strings.EqualFold(e, text) {
				return ir.String(e), nil
			}
		}
		return fail(errors.New("allowed values are " + strings.Join(field.Enum, ", ")))

	default:
		return ir.String(text), nil
	}
}
