package ports

import (
	"time"

	"github.com/aescanero/emud/pkg/domain"
)

// MetricsCollector receives orchestrator and pool measurements.
type MetricsCollector interface {
	RecordTransition(operation string, success bool, duration time.Duration)
	ObserveStep(subsystem domain.SubsystemKind, phase domain.Phase, success bool, duration time.Duration)
	RecordDataPlane(operation string, success bool)
	SetDeviceState(state domain.State)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) RecordTransition(string, bool, time.Duration) {}
func (NopMetrics) ObserveStep(domain.SubsystemKind, domain.Phase, bool, time.Duration) {}
func (NopMetrics) RecordDataPlane(string, bool) {}
func (NopMetrics) SetDeviceState(domain.State) {}
func (NopMetrics) RecordWorkerPoolStatus(int, int, int) {}
