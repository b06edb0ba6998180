// Package websocket provides real-time device event streaming via WebSocket.
//
// Clients connect to /api/v1/device/ws. The first message carries the
// current device snapshot; every following message carries one lifecycle
// event.
package websocket
