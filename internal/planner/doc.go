// Package planner compiles list requests into store operation plans.
//
// One Optimizer is built per request. The caller registers constraints with
// the Want methods, then calls Optimize and Render:
//
//	opt := planner.NewOptimizer(reg)
//	opt.WantEquality("state", ir.IRString("CREATED"))
//	opt.WantOrderBy("state", false)
//	if err := opt.Optimize(); err != nil { ... }
//	plan, err := opt.Render()
//
// Build does the same for a ListRequest and appends projection and paging.
//
// Each constraint becomes a Snippet in an arena owned by the Optimizer.
// Optimize picks a start snippet that can be served by an index, then
// greedily extends a chain: a sort that can reuse the scan's index order
// links first, everything else follows as a filter. Constraints that no
// index can serve always fall back to filtering; that is never an error.
//
// Optimizers are not safe for concurrent use. The Registry and Descriptor
// they read are shared read-only.
package planner
