package orchestrator

import (
	"fmt"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
)

// Validator validates orchestrator construction inputs
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the configuration and engine factories
func (v *Validator) Validate(cfg Config, factories ports.EngineFactories) error {
	if err := v.ValidateDevice(cfg.Device); err != nil {
		return err
	}

	if cfg.StepTimeout <= 0 {
		return fmt.Errorf("step timeout must be positive: %s", cfg.StepTimeout)
	}

	missing := make([]domain.SubsystemKind, 0)
	if factories.CPU == nil {
		missing = append(missing, domain.SubsystemCPU)
	}
	if factories.GPU == nil {
		missing = append(missing, domain.SubsystemGPU)
	}
	if factories.Audio == nil {
		missing = append(missing, domain.SubsystemAudio)
	}
	if factories.Network == nil {
		missing = append(missing, domain.SubsystemNetwork)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing engine factories: %v", missing)
	}

	return nil
}

// ValidateDevice checks a device configuration
func (v *Validator) ValidateDevice(d domain.DeviceConfig) error {
	if d.MemorySize <= 0 {
		return fmt.Errorf("memory size must be positive: %d", d.MemorySize)
	}
	if d.ScreenWidth <= 0 || d.ScreenHeight <= 0 {
		return fmt.Errorf("invalid screen dimensions: %dx%d", d.ScreenWidth, d.ScreenHeight)
	}
	if d.NetworkPort < 1 || d.NetworkPort > 65535 {
		return fmt.Errorf("invalid network port: %d", d.NetworkPort)
	}
	return nil
}
