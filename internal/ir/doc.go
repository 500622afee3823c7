// Package ir provides the record value model shared by every crawlplan layer.
//
// Records stored by the crawler control plane are trees of sealed IRValue
// types. The package holds no schema knowledge; schema lives in
// internal/schema and index metadata in internal/index.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers (deterministic encoding)
//   - Timestamps are fixed-width UTC strings so string order is time order
//   - Min and Max are ordering sentinels for open-ended ranges; they are
//     never persisted
//   - Compare is a total order over all values, sentinels included
package ir
