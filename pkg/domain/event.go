package domain

import "time"

// EventTopic is the bus topic lifecycle events are published on.
const EventTopic = "device.events"

// EventType identifies a lifecycle event.
type EventType string

const (
	EventTypeInitialized   EventType = "device.initialized"
	EventTypeInitFailed    EventType = "device.init_failed"
	EventTypeStarted       EventType = "device.started"
	EventTypeStartFailed   EventType = "device.start_failed"
	EventTypeStopped       EventType = "device.stopped"
	EventTypeStopFailed    EventType = "device.stop_failed"
	EventTypeReleased      EventType = "device.released"
	EventTypeCleanupFailed EventType = "device.cleanup_failed"
)

// Event is a lifecycle transition record.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	DeviceID  string                 `json:"device_id"`
	State     State                  `json:"state"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// DeviceSnapshot is the externally visible state of one device.
type DeviceSnapshot struct {
	DeviceID  string       `json:"device_id"`
	State     State        `json:"state"`
	Running   bool         `json:"running"`
	Config    DeviceConfig `json:"config"`
	LastError string       `json:"last_error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
