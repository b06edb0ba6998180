// Package workers implements the task-execution facility the orchestrator
// submits lifecycle operations to.
//
// The pool manages a fixed number of goroutines that:
//   - Consume submitted tasks in FIFO order
//   - Run tasks sharing a lane strictly one after another, in submission order
//   - Resolve a Future per task with its result or error
//   - Recover task panics into errors
//
// The health monitor tracks worker status and records pool metrics.
package workers
