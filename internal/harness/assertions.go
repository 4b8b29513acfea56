package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/querykit/internal/engine"
	"github.com/roach88/querykit/internal/ir"
	"github.com/roach88/querykit/internal/queryir"
)

// AssertionError describes one failed expectation.
type AssertionError struct {
	Check    string // what was checked, e.g. "ids" or "meta[Order.total.sum]"
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Check, e.Expected, e.Actual)
}

// CheckStep evaluates step's expectations against its outcome and returns
// one message per failure. A step without expectations must succeed.
func CheckStep(step RequestStep, sr StepResult) []string {
	var errs []error
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	if exp.Error != "" {
		if err := checkError(exp.Error, sr.Err); err != nil {
			errs = append(errs, err)
		}
		return messages(errs)
	}
	if sr.Err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", sr.Err)}
	}

	page := sr.Page
	if exp.IDs != nil {
		key := exp.Key
		if key == "" {
			key = "id"
		}
		errs = append(errs, checkIDs(key, exp.IDs, page.Content))
	}
	if exp.Total != nil {
		errs = append(errs, checkInt("total", *exp.Total, page.TotalItems))
	}
	if exp.Pages != nil {
		errs = append(errs, checkInt("pages", *exp.Pages, page.TotalPages))
	}
	if exp.Warnings != nil {
		errs = append(errs, checkInt("warnings", int64(*exp.Warnings), int64(len(page.Warnings))))
	}
	if exp.Distinct != nil {
		errs = append(errs, checkDistinct(exp.Distinct, page))
	}
	for _, key := range sortedKeys(exp.Meta) {
		errs = append(errs, checkMeta(key, exp.Meta[key], page.MetaValues[key]))
	}

	return messages(errs)
}

func messages(errs []error) []string {
	var out []string
	for _, err := range errs {
		if err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

func checkError(code string, err error) error {
	if err == nil {
		return &AssertionError{Check: "error", Expected: code, Actual: "success"}
	}
	if got := string(ir.CodeOf(err)); got != code {
		return &AssertionError{Check: "error", Expected: code, Actual: fmt.Sprintf("%q (%v)", got, err)}
	}
	return nil
}

func checkIDs(key string, want []int64, rows []queryir.Row) error {
	got := make([]int64, 0, len(rows))
	for _, row := range rows {
		switch v := row.Get(key).(type) {
		case ir.Int:
			got = append(got, int64(v))
		default:
			return &AssertionError{
				Check:    "ids",
				Expected: fmt.Sprintf("integer %q column", key),
				Actual:   v.Kind().String(),
			}
		}
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{Check: "ids", Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

func checkInt(check string, want, got int64) error {
	if want != got {
		return &AssertionError{Check: check, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

func checkDistinct(want map[string]map[string]string, page *engine.Page[queryir.Row]) error {
	got := page.DistinctValues
	if got == nil {
		got = map[string]map[string]string{}
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{Check: "distinct", Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

func checkMeta(key string, want map[string]any, got map[string]ir.Value) error {
	check := "meta[" + key + "]"
	if got == nil {
		return &AssertionError{Check: check, Expected: fmt.Sprint(want), Actual: "no such column"}
	}

	var diffs []string
	for _, label := range sortedKeys(want) {
		exp, err := ir.FromAny(want[label])
		if err != nil {
			return &AssertionError{Check: check, Expected: fmt.Sprint(want[label]), Actual: err.Error()}
		}
		act, ok := got[label]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%q missing", label))
			continue
		}
		if !sameValue(exp, act) {
			diffs = append(diffs, fmt.Sprintf("%q = %s, want %s", label, ir.Text(act), ir.Text(exp)))
		}
	}
	for _, label := range sortedKeys(got) {
		if _, ok := want[label]; !ok {
			diffs = append(diffs, fmt.Sprintf("unexpected %q = %s", label, ir.Text(got[label])))
		}
	}
	if len(diffs) > 0 {
		return &AssertionError{Check: check, Expected: fmt.Sprint(want), Actual: strings.Join(diffs, "; ")}
	}
	return nil
}

// sameValue compares numbers numerically and everything else by kind and
// value.
func sameValue(a, b ir.Value) bool {
	if af, ok := ir.AsFloat(a); ok {
		bf, ok := ir.AsFloat(b)
		return ok && af == bf
	}
	c, err := ir.Compare(a, b)
	return err == nil && c == 0 && a.Kind() == b.Kind()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
