// Package store provides SQLite-backed durable storage for crawler control
// plane records and executes planned list requests against it.
//
// Each record type of the catalog gets one table of (id, doc) rows, doc
// holding the record as canonical JSON. Secondary indexes are SQLite
// expression indexes over doc (see package storesql), so the plans the
// planner produces run as index range reads.
//
// # Critical Patterns
//
// Deterministic results
//   - every query ends its ORDER BY with id, so equal keys, repeated
//     requests and paging are stable
//
// Case folding
//   - ignore-case indexes call fold(), registered on every connection as a
//     deterministic function implemented by ir.Fold; SQL and Go fold
//     identically
//
// Catalog drift
//   - a table's schema fingerprint is recorded in catalog_tables; when the
//     catalog changes, the table's expression indexes are rebuilt on Open
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
