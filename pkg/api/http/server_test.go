package http

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aescanero/emud/internal/application/orchestrator"
	"github.com/aescanero/emud/pkg/adapters/engines/sim"
	metricsprom "github.com/aescanero/emud/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/emud/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, opts sim.Options) *Server {
	t.Helper()
	return newTestServerWith(t, opts, nil)
}

func newTestServerWith(t *testing.T, opts sim.Options, configure func(*Config)) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()

	cfg := orchestrator.DefaultConfig()
	cfg.Device = domain.DeviceConfig{MemorySize: 1024, ScreenWidth: 8, ScreenHeight: 4, NetworkPort: 5555}
	cfg.StepTimeout = 2 * time.Second

	opts.Logger = logger
	o, err := orchestrator.New(cfg, sim.Factories(opts), orchestrator.Deps{
		Metrics: metricsprom.NewCollector(reg),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("orchestrator.New failed: %v", err)
	}
	t.Cleanup(func() { o.Cleanup() })

	serverCfg := &Config{
		Orchestrator:     o,
		Gatherer:         reg,
		LifecycleTimeout: 5 * time.Second,
		Logger:           logger,
	}
	if configure != nil {
		configure(serverCfg)
	}
	return NewServer(serverCfg)
}

func do(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) domain.DeviceSnapshot {
	t.Helper()
	var snap domain.DeviceSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid snapshot body %q: %v", rec.Body.String(), err)
	}
	return snap
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, sim.Options{})

	rec := do(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"device":"uninitialized"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, sim.Options{AutoAccept: true})

	rec := do(t, s, http.MethodPost, "/api/v1/device/start", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("start before initialize: expected 409, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/device/initialize", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("initialize: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if snap := decodeSnapshot(t, rec); snap.State != domain.StateInitialized || !snap.Running {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/device/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodPost, "/api/v1/device/start", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("double start: expected 409, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/device/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.State != domain.StateStopped {
		t.Errorf("expected stopped, got %s", snap.State)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/device/cleanup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cleanup: expected 200, got %d", rec.Code)
	}
	if snap := decodeSnapshot(t, rec); snap.State != domain.StateReleased || snap.Running {
		t.Errorf("unexpected snapshot after cleanup: %+v", snap)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/device/framebuffer", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("framebuffer after cleanup: expected 409, got %d", rec.Code)
	}
}

func TestInitializeFailureOverHTTP(t *testing.T) {
	s := newTestServer(t, sim.Options{FailInit: []domain.SubsystemKind{domain.SubsystemAudio}})

	rec := do(t, s, http.MethodPost, "/api/v1/device/initialize", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INITIALIZE_FAILED") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/v1/device", nil)
	if !strings.Contains(rec.Body.String(), `"state":"released"`) {
		t.Errorf("expected released device: %s", rec.Body.String())
	}
}

func TestDataPlaneOverHTTP(t *testing.T) {
	s := newTestServer(t, sim.Options{AutoAccept: true})

	rec := do(t, s, http.MethodPost, "/api/v1/device/program", []byte{1, 2, 3})
	if rec.Code != http.StatusConflict {
		t.Fatalf("program before initialize: expected 409, got %d", rec.Code)
	}

	if rec := do(t, s, http.MethodPost, "/api/v1/device/initialize", nil); rec.Code != http.StatusOK {
		t.Fatalf("initialize failed: %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/device/program", []byte{1, 2, 3})
	if rec.Code != http.StatusOK {
		t.Errorf("program: expected 200, got %d", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/device/program", make([]byte, 2048))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("oversized program: expected 422, got %d", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/device/program", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty program: expected 400, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/device/framebuffer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("framebuffer: expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 8*4*4 {
		t.Errorf("expected 128-byte frame, got %d", rec.Body.Len())
	}
	if rec.Header().Get("X-Frame-Width") != "8" {
		t.Errorf("unexpected width header: %q", rec.Header().Get("X-Frame-Width"))
	}

	audio := make([]byte, 8)
	binary.LittleEndian.PutUint16(audio, uint16(0xffff))
	rec = do(t, s, http.MethodPost, "/api/v1/device/audio", audio)
	if rec.Code != http.StatusOK {
		t.Errorf("audio: expected 200, got %d", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/device/audio", []byte{1, 2, 3})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("odd audio body: expected 400, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/device/network/3", []byte("ping"))
	if rec.Code != http.StatusOK {
		t.Errorf("network: expected 200, got %d", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/device/network/abc", []byte("ping"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad connection id: expected 400, got %d", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/device/network/-1", []byte("ping"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("rejected send: expected 422, got %d", rec.Code)
	}
}

func TestOversizedBodiesRejected(t *testing.T) {
	s := newTestServerWith(t, sim.Options{AutoAccept: true}, func(cfg *Config) {
		cfg.MaxProgramBytes = 16
	})
	if rec := do(t, s, http.MethodPost, "/api/v1/device/initialize", nil); rec.Code != http.StatusOK {
		t.Fatalf("initialize failed: %d", rec.Code)
	}

	tests := []struct {
		name string
		path string
		size int
		want int
	}{
		{"program at limit", "/api/v1/device/program", 16, http.StatusOK},
		{"program over limit", "/api/v1/device/program", 17, http.StatusRequestEntityTooLarge},
		{"network over limit", "/api/v1/device/network/1", maxNetworkBytes + 1, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, make([]byte, tt.size))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusRequestEntityTooLarge &&
				!strings.Contains(rec.Body.String(), "PAYLOAD_TOO_LARGE") {
				t.Errorf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, sim.Options{})
	do(t, s, http.MethodPost, "/api/v1/device/initialize", nil)

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "emud_lifecycle_transitions_total") {
		t.Error("lifecycle metrics missing from /metrics")
	}
}
