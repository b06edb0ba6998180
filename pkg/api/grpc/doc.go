// Package grpc serves the standard gRPC health service. The service named
// by ServiceName is SERVING while the emulated device is running and
// NOT_SERVING in every other state.
package grpc
