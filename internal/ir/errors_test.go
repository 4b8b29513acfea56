package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryErrorMessage(t *testing.T) {
	err := NewPathNotFoundError("Order", "customer.nope", "no field nope on Customer")
	assert.Equal(t, "PATH_NOT_FOUND: no field nope on Customer (path=customer.nope)", err.Error())
	assert.Equal(t, "Order", err.Details["root"])
}

func TestQueryErrorWrapping(t *testing.T) {
	base := NewMalformedTermError("a:??", "unknown comparator")
	wrapped := fmt.Errorf("parse filter: %w", base)

	assert.True(t, HasCode(wrapped, ErrCodeMalformedTerm))
	assert.Equal(t, ErrCodeMalformedTerm, CodeOf(wrapped))

	var qe *QueryError
	assert.True(t, errors.As(wrapped, &qe))
	assert.Equal(t, "a:??", qe.Path)
}

func TestInvalidValueErrorUnwraps(t *testing.T) {
	cause := errors.New("strconv.ParseInt: parsing \"abc\": invalid syntax")
	err := NewInvalidValueError("quantity", "abc", "int", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `value "abc" is not a valid int`)
}

func TestIsClientFault(t *testing.T) {
	assert.True(t, IsClientFault(NewPathNotAllowedError("Order", "secret")))
	assert.True(t, IsClientFault(NewDuplicateSortFieldError("name")))
	assert.True(t, IsClientFault(NewDuplicateAggregateKeyError("k")))
	assert.False(t, IsClientFault(NewMultiDimensionalCountError(2, 1)))
	assert.False(t, IsClientFault(errors.New("disk full")))
	assert.False(t, IsClientFault(nil))
}

func TestIsPathError(t *testing.T) {
	assert.True(t, IsPathError(NewPathNotFoundError("Order", "x", "unknown")))
	assert.True(t, IsPathError(NewPathNotAllowedError("Order", "x")))
	assert.False(t, IsPathError(NewMalformedTermError("x", "bad")))
}

func TestMultiDimensionalCountErrorDetails(t *testing.T) {
	err := NewMultiDimensionalCountError(3, 2)
	assert.Equal(t, "3", err.Details["rows"])
	assert.Equal(t, "2", err.Details["columns"])
	assert.Contains(t, err.Error(), "want exactly one scalar")
}
