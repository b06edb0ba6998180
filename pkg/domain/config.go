package domain

// Device defaults.
const (
	DefaultMemorySize   = 512 * 1024 * 1024
	DefaultScreenWidth  = 1920
	DefaultScreenHeight = 1080
	DefaultNetworkPort  = 5555
)

// DeviceConfig is the construction-time configuration of one emulated device.
// It is fixed once an orchestrator has been built from it.
type DeviceConfig struct {
	MemorySize   int `json:"memory_size" yaml:"memory_size"`
	ScreenWidth  int `json:"screen_width" yaml:"screen_width"`
	ScreenHeight int `json:"screen_height" yaml:"screen_height"`
	NetworkPort  int `json:"network_port" yaml:"network_port"`
}

// DefaultDeviceConfig returns the stock device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		MemorySize:   DefaultMemorySize,
		ScreenWidth:  DefaultScreenWidth,
		ScreenHeight: DefaultScreenHeight,
		NetworkPort:  DefaultNetworkPort,
	}
}
