// Package ir holds the scalar value model and error taxonomy shared by every
// querykit package.
//
// ir imports nothing internal. Filters, plans, executors and result pages
// all exchange data as ir.Value, and every failure a caller may need to
// classify is an *ir.QueryError.
//
// Key constraints:
//   - Value is sealed: Null, String, Int, Float, Bool, Time
//   - Time values are normalized to UTC
//   - MarshalCanonical is the only serialization used for fingerprints and
//     golden snapshots
package ir
