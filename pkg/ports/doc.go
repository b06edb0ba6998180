// Package ports defines the capability interfaces the orchestrator consumes:
// the four external engines, their narrow data-plane interfaces, and the
// event bus, state storage and metrics sinks.
package ports
