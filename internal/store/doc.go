// Package store runs compiled plans against a database and returns rows
// keyed by projection label.
//
// Store wraps SQLite (mattn/go-sqlite3) and PGStore wraps PostgreSQL
// (pgx pool). Both create tables from a schema, seed fixture rows and
// execute primary and count plans, read-only plans inside read-only
// transactions.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
