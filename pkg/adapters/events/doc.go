// Package events provides lifecycle event bus implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: In-memory fan-out for single-process use and tests
package events
