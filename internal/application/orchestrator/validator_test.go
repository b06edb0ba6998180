package orchestrator

import (
	"testing"
	"time"

	"github.com/aescanero/emud/pkg/domain"
)

func TestValidateDevice(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		mutate  func(d *domain.DeviceConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(d *domain.DeviceConfig) {}},
		{name: "zero memory", mutate: func(d *domain.DeviceConfig) { d.MemorySize = 0 }, wantErr: true},
		{name: "negative width", mutate: func(d *domain.DeviceConfig) { d.ScreenWidth = -1 }, wantErr: true},
		{name: "zero height", mutate: func(d *domain.DeviceConfig) { d.ScreenHeight = 0 }, wantErr: true},
		{name: "port too high", mutate: func(d *domain.DeviceConfig) { d.NetworkPort = 70000 }, wantErr: true},
		{name: "lowest port", mutate: func(d *domain.DeviceConfig) { d.NetworkPort = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := domain.DefaultDeviceConfig()
			tt.mutate(&d)
			err := v.ValidateDevice(d)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDevice() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()
	factories := newFakeSet().factories()

	if err := v.Validate(DefaultConfig(), factories); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}

	cfg := DefaultConfig()
	cfg.StepTimeout = -time.Second
	if err := v.Validate(cfg, factories); err == nil {
		t.Error("expected negative step timeout to be rejected")
	}

	factories.GPU = nil
	factories.Audio = nil
	err := v.Validate(DefaultConfig(), factories)
	if err == nil {
		t.Fatal("expected missing factories to be rejected")
	}
	if got := err.Error(); got != "missing engine factories: [gpu audio]" {
		t.Errorf("unexpected error message: %s", got)
	}
}
