// Package orchestrator implements the emulated device lifecycle.
//
// The orchestrator coordinates the CPU, GPU, audio and network engines by:
//   - Bringing them up in dependency order and rolling back on any failure
//   - Serializing initialize, start, stop and cleanup on a single task lane
//   - Bounding every subsystem step with a timeout
//   - Guarding data-plane calls with the run-state flag
//   - Publishing lifecycle events and persisting device snapshots
//
// The validator rejects device configurations and engine sets the
// orchestrator cannot be built from.
package orchestrator
