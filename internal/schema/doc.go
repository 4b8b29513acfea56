// Package schema describes entities, their fields and relations, and
// resolves dotted field paths against them.
//
// A Schema is static: it is built once (from CUE definitions or Go code)
// and never mutated afterwards, which is what allows the Resolver to memoize
// resolutions process-wide without invalidation.
package schema
