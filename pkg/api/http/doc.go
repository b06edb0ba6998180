// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Device lifecycle control (initialize, start, stop, cleanup)
//   - Data-plane access (program load, frame buffer, audio, network)
//   - Health checks and device state
//   - Prometheus metrics
package http
