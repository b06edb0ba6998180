package config

import (
	"fmt"
	"os"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the emulator daemon
type Config struct {
	// Server configuration
	HTTPPort int    `env:"EMUD_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"EMUD_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// Emulated device configuration
	Device DeviceConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration. When disabled, events
// and snapshots stay in memory.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	SnapshotTTL   time.Duration `env:"REDIS_SNAPSHOT_TTL" envDefault:"24h"`
	StreamMaxLen  int64         `env:"REDIS_STREAM_MAXLEN" envDefault:"10000"`
	ConsumerGroup string        `env:"REDIS_CONSUMER_GROUP" envDefault:"emud"`
	ConsumerName  string        `env:"REDIS_CONSUMER_NAME" envDefault:"emud-1"`
}

// DeviceConfig holds the emulated device settings
type DeviceConfig struct {
	MemorySize   int `env:"EMUD_MEMORY_SIZE" envDefault:"536870912" yaml:"memory_size"`
	ScreenWidth  int `env:"EMUD_SCREEN_WIDTH" envDefault:"1920" yaml:"screen_width"`
	ScreenHeight int `env:"EMUD_SCREEN_HEIGHT" envDefault:"1080" yaml:"screen_height"`
	NetworkPort  int `env:"EMUD_NETWORK_PORT" envDefault:"5555" yaml:"network_port"`

	// Profile is an optional YAML file whose fields override the values above.
	Profile string `env:"EMUD_DEVICE_PROFILE" yaml:"-"`

	// FailInit lists subsystems whose simulated engines refuse to initialize.
	FailInit []string `env:"EMUD_SIM_FAIL_INIT" envSeparator:"," yaml:"-"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"2"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	StepTimeout      time.Duration `env:"TIMEOUT_STEP" envDefault:"10s"`
	LifecycleTimeout time.Duration `env:"TIMEOUT_LIFECYCLE" envDefault:"60s"`
	ShutdownTimeout  time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables and applies the
// device profile, if any
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Device.Profile != "" {
		if err := cfg.Device.applyProfile(cfg.Device.Profile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyProfile overlays the fields present in a YAML profile
func (d *DeviceConfig) applyProfile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read device profile: %w", err)
	}
	if err := yaml.Unmarshal(content, d); err != nil {
		return fmt.Errorf("parse device profile: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate Redis config
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate device config
	if c.Device.MemorySize <= 0 {
		return fmt.Errorf("memory size must be positive: %d", c.Device.MemorySize)
	}
	if c.Device.ScreenWidth <= 0 || c.Device.ScreenHeight <= 0 {
		return fmt.Errorf("invalid screen dimensions: %dx%d", c.Device.ScreenWidth, c.Device.ScreenHeight)
	}
	if c.Device.NetworkPort < 1 || c.Device.NetworkPort > 65535 {
		return fmt.Errorf("invalid network port: %d", c.Device.NetworkPort)
	}
	for _, kind := range c.Device.FailInit {
		if !validSubsystem(kind) {
			return fmt.Errorf("unknown subsystem in EMUD_SIM_FAIL_INIT: %s", kind)
		}
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}

	// Validate timeouts
	if c.Timeouts.StepTimeout <= 0 {
		return fmt.Errorf("step timeout must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

func validSubsystem(kind string) bool {
	for _, k := range domain.InitOrder {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// DomainDevice returns the device section as a domain value
func (c *Config) DomainDevice() domain.DeviceConfig {
	return domain.DeviceConfig{
		MemorySize:   c.Device.MemorySize,
		ScreenWidth:  c.Device.ScreenWidth,
		ScreenHeight: c.Device.ScreenHeight,
		NetworkPort:  c.Device.NetworkPort,
	}
}

// FailInitKinds returns the subsystems configured to fail initialization
func (c *Config) FailInitKinds() []domain.SubsystemKind {
	kinds := make([]domain.SubsystemKind, 0, len(c.Device.FailInit))
	for _, k := range c.Device.FailInit {
		kinds = append(kinds, domain.SubsystemKind(k))
	}
	return kinds
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
