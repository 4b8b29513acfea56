// Package queryir provides the backend-neutral query plan produced by the
// planner and consumed by executors.
//
// ARCHITECTURE:
//
// The plan sits between the request planner and the query backends:
//
//	[filter tree + request] → [planner] → [Plan] → [querysql] → SQLite / Postgres
//
// A Plan describes one SELECT over a root table: aliased outer joins, a
// predicate tree, projections, ordering, grouping, distinctness and paging.
// Nothing in a Plan is SQL text; backends render it for their dialect.
//
// SEALED INTERFACES:
//
// Expr and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch over
// every node type exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	    // col <op> value
//	case Exists:
//	    // correlated subquery
//	...
//	}
//
// IMMUTABILITY:
//
// Predicates and expressions are values and are never modified after
// construction, so plans may share them. Plan.Clone copies the slices a
// caller is allowed to change (joins, projections, ordering, grouping) and
// shares the predicate tree.
//
// ALIASES:
//
// The root table is always aliased t0 and joins are aliased t1, t2, ... in
// creation order. Subqueries use their own alias space (s0, s1, ...) and
// refer to the enclosing plan's aliases for correlation. Validate checks
// that every column reference names an alias in scope.
package queryir
