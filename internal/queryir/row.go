package queryir

import "github.com/roach88/querykit/internal/ir"

// Row is one result row keyed by projection label.
type Row map[string]ir.Value

// Get returns the value under label, or Null when absent.
func (r Row) Get(label string) ir.Value {
	if v, ok := r[label]; ok && v != nil {
		return v
	}
	return ir.Null{}
}
