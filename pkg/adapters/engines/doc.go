// Package engines holds engine implementations for the four emulated
// subsystems.
//
// Implementations:
//   - sim: In-process simulated engines for the daemon and tests
package engines
