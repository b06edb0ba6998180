// Package domain holds the types shared by the orchestrator, its adapters and
// its API surfaces: the device lifecycle state, subsystem kinds and phases,
// lifecycle events, device snapshots and the error taxonomy.
package domain
