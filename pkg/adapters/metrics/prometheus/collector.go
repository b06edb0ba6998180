package prometheus

import (
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var allStates = []domain.State{
	domain.StateUninitialized,
	domain.StateInitialized,
	domain.StateRunning,
	domain.StateStopped,
	domain.StateReleased,
}

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	steps              *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	dataPlaneCalls     *prometheus.CounterVec
	deviceState        *prometheus.GaugeVec
	workerPoolIdle     prometheus.Gauge
	workerPoolBusy     prometheus.Gauge
	workerPoolStopped  prometheus.Gauge
}

// NewCollector registers the emulator metrics on reg. A nil reg uses the
// default Prometheus registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emud_lifecycle_transitions_total",
				Help: "Total number of lifecycle operations by outcome",
			},
			[]string{"operation", "status"},
		),
		transitionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emud_lifecycle_duration_seconds",
				Help:    "Lifecycle operation duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"operation"},
		),
		steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emud_subsystem_steps_total",
				Help: "Total number of subsystem steps by outcome",
			},
			[]string{"subsystem", "phase", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emud_subsystem_step_duration_seconds",
				Help:    "Subsystem step duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"subsystem", "phase"},
		),
		dataPlaneCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emud_data_plane_calls_total",
				Help: "Total number of data-plane calls by outcome",
			},
			[]string{"operation", "status"},
		),
		deviceState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "emud_device_state",
				Help: "Current device lifecycle state, 1 for the active state",
			},
			[]string{"state"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "emud_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "emud_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "emud_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordTransition records a lifecycle operation outcome
func (c *Collector) RecordTransition(operation string, success bool, duration time.Duration) {
	c.transitions.WithLabelValues(operation, status(success)).Inc()
	c.transitionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveStep records one subsystem step
func (c *Collector) ObserveStep(subsystem domain.SubsystemKind, phase domain.Phase, success bool, duration time.Duration) {
	c.steps.WithLabelValues(string(subsystem), string(phase), status(success)).Inc()
	c.stepDuration.WithLabelValues(string(subsystem), string(phase)).Observe(duration.Seconds())
}

// RecordDataPlane records a data-plane call outcome
func (c *Collector) RecordDataPlane(operation string, success bool) {
	c.dataPlaneCalls.WithLabelValues(operation, status(success)).Inc()
}

// SetDeviceState marks state as the active one
func (c *Collector) SetDeviceState(state domain.State) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.deviceState.WithLabelValues(s.String()).Set(v)
	}
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
