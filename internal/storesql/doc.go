// Package storesql compiles store operation plans into parameterized SQLite
// SQL over JSON document tables.
//
// Every record type lives in one table of (id TEXT PRIMARY KEY, doc TEXT)
// rows, doc holding the record as JSON. Index keys are SQL expressions over
// doc that read absent fields the way the storeop driver contract does:
// scalars coalesce to their default, fields without a default to the
// integer 0, which sorts below every string and so stands in for null.
// Ignore-case components are wrapped in fold(), a deterministic function
// the connection must register (see FoldFunc).
//
// Non-multi secondary indexes become expression indexes (see Schema), so
// RangeScan and GetByKey sources compile to index range reads. Multi
// indexes and Any predicates compile to EXISTS over json_each.
//
// Result order follows the plan: a Sort orders by its key with id as the
// tiebreaker; without one, GetByKey sources keep key order, non-multi
// RangeScan sources key order and everything else id order.
package storesql
