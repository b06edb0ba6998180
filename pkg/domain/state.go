package domain

import "fmt"

// State is the lifecycle state of an emulated device.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CanStart reports whether a start transition is allowed from s.
// Initialized and Stopped are equivalent for restart purposes.
func (s State) CanStart() bool {
	return s == StateInitialized || s == StateStopped
}

// MarshalText renders the state by name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "uninitialized":
		*s = StateUninitialized
	case "initialized":
		*s = StateInitialized
	case "running":
		*s = StateRunning
	case "stopped":
		*s = StateStopped
	case "released":
		*s = StateReleased
	default:
		return fmt.Errorf("unknown device state: %q", string(text))
	}
	return nil
}

// SubsystemKind identifies one of the four external engines.
type SubsystemKind string

const (
	SubsystemCPU     SubsystemKind = "cpu"
	SubsystemGPU     SubsystemKind = "gpu"
	SubsystemAudio   SubsystemKind = "audio"
	SubsystemNetwork SubsystemKind = "network"
)

// InitOrder is the dependency order used to bring subsystems up.
// Release order is its exact reverse.
var InitOrder = []SubsystemKind{SubsystemCPU, SubsystemGPU, SubsystemAudio, SubsystemNetwork}

// Phase is the lifecycle phase a subsystem step belongs to.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseActivate   Phase = "activate"
	PhaseDeactivate Phase = "deactivate"
	PhaseRelease    Phase = "release"
)

// Status is the signal an engine returns from init. Zero is success.
type Status int

const StatusOK Status = 0

// OK reports whether the status signals success.
func (s Status) OK() bool { return s == StatusOK }
