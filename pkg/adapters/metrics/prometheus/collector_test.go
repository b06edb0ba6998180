package prometheus

import (
	"testing"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var _ ports.MetricsCollector = (*Collector)(nil)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func labelsOf(m *dto.Metric) map[string]string {
	out := map[string]string{}
	for _, l := range m.GetLabel() {
		out[l.GetName()] = l.GetValue()
	}
	return out
}

func TestRecordTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTransition("initialize", true, 10*time.Millisecond)
	c.RecordTransition("initialize", true, 10*time.Millisecond)
	c.RecordTransition("start", false, time.Millisecond)

	f := gather(t, reg)["emud_lifecycle_transitions_total"]
	if f == nil {
		t.Fatal("transition counter not registered")
	}

	counts := map[string]float64{}
	for _, m := range f.GetMetric() {
		l := labelsOf(m)
		counts[l["operation"]+"/"+l["status"]] = m.GetCounter().GetValue()
	}
	if counts["initialize/success"] != 2 || counts["start/failure"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestSetDeviceState(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetDeviceState(domain.StateInitialized)
	c.SetDeviceState(domain.StateRunning)

	f := gather(t, reg)["emud_device_state"]
	if f == nil {
		t.Fatal("device state gauge not registered")
	}
	if len(f.GetMetric()) != len(allStates) {
		t.Fatalf("expected %d series, got %d", len(allStates), len(f.GetMetric()))
	}
	for _, m := range f.GetMetric() {
		want := 0.0
		if labelsOf(m)["state"] == "running" {
			want = 1
		}
		if got := m.GetGauge().GetValue(); got != want {
			t.Errorf("state %s: expected %v, got %v", labelsOf(m)["state"], want, got)
		}
	}
}

func TestStepsAndPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveStep(domain.SubsystemGPU, domain.PhaseInit, false, time.Millisecond)
	c.RecordDataPlane("queue_audio", true)
	c.RecordWorkerPoolStatus(1, 1, 0)

	families := gather(t, reg)
	steps := families["emud_subsystem_steps_total"]
	if steps == nil || len(steps.GetMetric()) != 1 {
		t.Fatal("expected one step series")
	}
	l := labelsOf(steps.GetMetric()[0])
	if l["subsystem"] != "gpu" || l["phase"] != "init" || l["status"] != "failure" {
		t.Errorf("unexpected step labels: %v", l)
	}
	if families["emud_data_plane_calls_total"] == nil {
		t.Error("data-plane counter missing")
	}
	if g := families["emud_worker_pool_busy"]; g == nil || g.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Error("busy gauge not set")
	}
}
