package filter

import (
	"fmt"
	"strings"
)

// CompareOperator is the comparison a leaf filter applies.
type CompareOperator int

const (
	OpTrue CompareOperator = iota + 1
	OpFalse
	OpIsNull
	OpIsNotNull
	OpIsEmpty
	OpIsNotEmpty
	OpEq
	OpNeq
	OpLike
	OpGt
	OpLt
	OpGte
	OpLte
	OpIn
	OpNotIn
	OpEach
	OpNotEach
	OpExcept
	OpNotExcept
)

var operatorKeywords = map[CompareOperator]string{
	OpTrue:       "TRUE",
	OpFalse:      "FALSE",
	OpIsNull:     "IS_NULL",
	OpIsNotNull:  "IS_NOT_NULL",
	OpIsEmpty:    "IS_EMPTY",
	OpIsNotEmpty: "IS_NOT_EMPTY",
	OpEq:         "EQ",
	OpNeq:        "NEQ",
	OpLike:       "LIKE",
	OpGt:         "GT",
	OpLt:         "LT",
	OpGte:        "GTE",
	OpLte:        "LTE",
	OpIn:         "IN",
	OpNotIn:      "NOT_IN",
	OpEach:       "EACH",
	OpNotEach:    "NOT_EACH",
	OpExcept:     "EXCEPT",
	OpNotExcept:  "NOT_EXCEPT",
}

var operatorsByKeyword = func() map[string]CompareOperator {
	m := make(map[string]CompareOperator, len(operatorKeywords))
	for op, kw := range operatorKeywords {
		m[kw] = op
	}
	return m
}()

// String returns the grammar keyword, e.g. "NOT_IN".
func (op CompareOperator) String() string {
	if kw, ok := operatorKeywords[op]; ok {
		return kw
	}
	return fmt.Sprintf("CompareOperator(%d)", int(op))
}

// ParseCompareOperator parses a grammar keyword. Keywords are case-sensitive.
func ParseCompareOperator(s string) (CompareOperator, error) {
	if op, ok := operatorsByKeyword[s]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown compare operator %q", s)
}

// Unary reports whether the operator takes no values.
func (op CompareOperator) Unary() bool {
	switch op {
	case OpTrue, OpFalse, OpIsNull, OpIsNotNull, OpIsEmpty, OpIsNotEmpty:
		return true
	default:
		return false
	}
}

// MultiValued reports whether the grammar splits the value on the CSV
// separator for this operator.
func (op CompareOperator) MultiValued() bool {
	switch op {
	case OpIn, OpNotIn, OpEach, OpNotEach, OpExcept, OpNotExcept:
		return true
	default:
		return false
	}
}

// SetMembership reports whether the operator counts matches in a child
// collection instead of comparing one value.
func (op CompareOperator) SetMembership() bool {
	switch op {
	case OpEach, OpNotEach, OpExcept, OpNotExcept:
		return true
	default:
		return false
	}
}

// Valid reports whether op is one of the declared operators.
func (op CompareOperator) Valid() bool {
	_, ok := operatorKeywords[op]
	return ok
}

// comparatorTokens maps the punctuation shorthand to operators, longest
// token first so ":>=" wins over ":>" and ":".
var comparatorTokens = []struct {
	token string
	op    CompareOperator
}{
	{":!#", OpNotIn},
	{":>=", OpGte},
	{":<=", OpLte},
	{":!", OpNeq},
	{":~", OpLike},
	{":>", OpGt},
	{":<", OpLt},
	{":#", OpIn},
	{":", OpEq},
}

// ValueModifier transforms filter values before they are compiled.
type ValueModifier int

const (
	ModNone ValueModifier = iota
	ModLikeLeft
	ModLikeRight
	ModLikeBoth
	ModSplit
	ModSplitLikeLeft
	ModSplitLikeRight
	ModSplitLikeBoth
)

var modifierKeywords = map[ValueModifier]string{
	ModNone:           "NONE",
	ModLikeLeft:       "LIKE_LEFT",
	ModLikeRight:      "LIKE_RIGHT",
	ModLikeBoth:       "LIKE_BOTH",
	ModSplit:          "SPLIT",
	ModSplitLikeLeft:  "SPLIT_LIKE_LEFT",
	ModSplitLikeRight: "SPLIT_LIKE_RIGHT",
	ModSplitLikeBoth:  "SPLIT_LIKE_BOTH",
}

var modifiersByKeyword = func() map[string]ValueModifier {
	m := make(map[string]ValueModifier, len(modifierKeywords))
	for mod, kw := range modifierKeywords {
		m[kw] = mod
	}
	return m
}()

// String returns the grammar keyword, e.g. "SPLIT_LIKE_BOTH".
func (m ValueModifier) String() string {
	if kw, ok := modifierKeywords[m]; ok {
		return kw
	}
	return fmt.Sprintf("ValueModifier(%d)", int(m))
}

// ParseValueModifier parses a grammar keyword. Keywords are case-sensitive.
func ParseValueModifier(s string) (ValueModifier, error) {
	if m, ok := modifiersByKeyword[s]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown value modifier %q", s)
}

// Splits reports whether values are tokenized on whitespace first.
func (m ValueModifier) Splits() bool {
	return m >= ModSplit && m <= ModSplitLikeBoth
}

// Apply transforms raw values: Split variants tokenize each value on
// whitespace, then Like variants add the % wildcard on the named side of
// every token. ModNone returns values unchanged.
//
//	LIKE_LEFT  "abc" -> "%abc"
//	LIKE_RIGHT "abc" -> "abc%"
//	LIKE_BOTH  "abc" -> "%abc%"
func (m ValueModifier) Apply(values []string) []string {
	if m == ModNone {
		return values
	}

	tokens := values
	if m.Splits() {
		tokens = nil
		for _, v := range values {
			tokens = append(tokens, strings.Fields(v)...)
		}
	}

	left, right := false, false
	switch m {
	case ModLikeLeft, ModSplitLikeLeft:
		left = true
	case ModLikeRight, ModSplitLikeRight:
		right = true
	case ModLikeBoth, ModSplitLikeBoth:
		left, right = true, true
	}

	out := make([]string, len(tokens))
	for i, t := range tokens {
		if left {
			t = "%" + t
		}
		if right {
			t = t + "%"
		}
		out[i] = t
	}
	return out
}

// LogicOperator joins the members of a compound filter.
type LogicOperator int

const (
	And LogicOperator = iota
	Or
)

// String returns "AND" or "OR".
func (l LogicOperator) String() string {
	if l == Or {
		return "OR"
	}
	return "AND"
}
