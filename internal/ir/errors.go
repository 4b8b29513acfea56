package ir

import (
	"errors"
	"fmt"
)

// QueryError is the single error type for request-level failures.
//
// Every failure a caller may want to branch on carries one of the
// ErrorCode constants below. Code-specific context (the offending path,
// term or key) goes in Path and Details.
type QueryError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the field path, term or aggregate key the error is about.
	Path string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes query errors.
type ErrorCode string

const (
	// ErrCodePathNotFound indicates a field path does not resolve against the root entity.
	ErrCodePathNotFound ErrorCode = "PATH_NOT_FOUND"

	// ErrCodePathNotAllowed indicates a path resolves but the path policy rejects it.
	ErrCodePathNotAllowed ErrorCode = "PATH_NOT_ALLOWED"

	// ErrCodeMalformedTerm indicates a filter term does not match the grammar.
	ErrCodeMalformedTerm ErrorCode = "MALFORMED_TERM"

	// ErrCodeDuplicateSortField indicates the same path was sorted on twice.
	ErrCodeDuplicateSortField ErrorCode = "DUPLICATE_SORT_FIELD"

	// ErrCodeInvalidValue indicates a literal could not be coerced to the column type.
	// Never fatal: the original string is kept.
	ErrCodeInvalidValue ErrorCode = "INVALID_VALUE"

	// ErrCodeDuplicateAggregateKey indicates two distinct/meta columns share a result key.
	ErrCodeDuplicateAggregateKey ErrorCode = "DUPLICATE_AGGREGATE_KEY"

	// ErrCodeMultiDimensionalCount indicates a count query did not return exactly one scalar.
	ErrCodeMultiDimensionalCount ErrorCode = "MULTI_DIMENSIONAL_COUNT"

	// ErrCodeUnsupportedOperator indicates an operator or modifier cannot apply to the field.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first QueryError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// HasCode reports whether err's chain contains a QueryError with code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsPathError reports whether err is a path resolution or policy failure.
func IsPathError(err error) bool {
	code := CodeOf(err)
	return code == ErrCodePathNotFound || code == ErrCodePathNotAllowed
}

// IsClientFault reports whether err was caused by request input rather than
// by the engine, the schema or the executor. Duplicate aggregate keys are a
// caller programming error and count as a client fault too.
func IsClientFault(err error) bool {
	switch CodeOf(err) {
	case ErrCodePathNotFound, ErrCodePathNotAllowed, ErrCodeMalformedTerm,
		ErrCodeDuplicateSortField, ErrCodeUnsupportedOperator, ErrCodeDuplicateAggregateKey:
		return true
	default:
		return false
	}
}

// NewPathNotFoundError reports that path does not resolve from root.
func NewPathNotFoundError(root, path, reason string) *QueryError {
	return &QueryError{
		Code:    ErrCodePathNotFound,
		Message: reason,
		Path:    path,
		Details: map[string]string{"root": root},
	}
}

// NewPathNotAllowedError reports that path is rejected by root's policy.
func NewPathNotAllowedError(root, path string) *QueryError {
	return &QueryError{
		Code:    ErrCodePathNotAllowed,
		Message: "path is not allowed for this entity",
		Path:    path,
		Details: map[string]string{"root": root},
	}
}

// NewMalformedTermError reports a term that does not match the filter grammar.
func NewMalformedTermError(term, reason string) *QueryError {
	return &QueryError{
		Code:    ErrCodeMalformedTerm,
		Message: reason,
		Path:    term,
	}
}

// NewDuplicateSortFieldError reports a second sort on the same path.
func NewDuplicateSortFieldError(path string) *QueryError {
	return &QueryError{
		Code:    ErrCodeDuplicateSortField,
		Message: "field is already part of the sort order",
		Path:    path,
	}
}

// NewInvalidValueError reports a literal that could not be parsed as the
// column's declared type.
func NewInvalidValueError(path, value, fieldType string, cause error) *QueryError {
	return &QueryError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("value %q is not a valid %s", value, fieldType),
		Path:    path,
		Details: map[string]string{"value": value, "type": fieldType},
		Err:     cause,
	}
}

// NewDuplicateAggregateKeyError reports two distinct/meta columns with the same key.
func NewDuplicateAggregateKeyError(key string) *QueryError {
	return &QueryError{
		Code:    ErrCodeDuplicateAggregateKey,
		Message: "aggregate key is used more than once",
		Path:    key,
	}
}

// NewMultiDimensionalCountError reports a count query that did not yield
// exactly one row with one column.
func NewMultiDimensionalCountError(rows, columns int) *QueryError {
	return &QueryError{
		Code:    ErrCodeMultiDimensionalCount,
		Message: fmt.Sprintf("count query returned %d row(s) with %d column(s), want exactly one scalar", rows, columns),
		Details: map[string]string{
			"rows":    fmt.Sprintf("%d", rows),
			"columns": fmt.Sprintf("%d", columns),
		},
	}
}

// NewUnsupportedOperatorError reports an operator that cannot apply to path.
func NewUnsupportedOperatorError(path, operator, reason string) *QueryError {
	return &QueryError{
		Code:    ErrCodeUnsupportedOperator,
		Message: fmt.Sprintf("%s: %s", operator, reason),
		Path:    path,
		Details: map[string]string{"operator": operator},
	}
}
