package harness

import (
	"github.com/roach88/querykit/internal/engine"
	"github.com/roach88/querykit/internal/queryir"
)

// Result contains the outcome of running a scenario.
type Result struct {
	// Pass is true if every expectation held.
	Pass bool

	// Steps has one entry per request, in order.
	Steps []StepResult

	// Errors lists every failed expectation.
	Errors []string
}

// StepResult is the outcome of one request: a page or an error.
type StepResult struct {
	Name string
	Page *engine.Page[queryir.Row]
	Err  error
}

// NewResult creates a passing Result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}
