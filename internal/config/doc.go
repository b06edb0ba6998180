// Package config provides configuration management for the emulator daemon.
//
// Configuration is loaded from environment variables using the env package.
// The device section may additionally be overridden by a YAML profile named
// in EMUD_DEVICE_PROFILE:
//
//	memory_size: 268435456
//	screen_width: 1280
//	screen_height: 720
//	network_port: 5556
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
