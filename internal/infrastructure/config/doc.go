// Package config handles loading and validating BenchLink Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with BENCHLINK_* environment variables
//   - Validation of required fields and device declarations
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
//     set via environment variables
//   - The JWT secret is only required when security.enabled is set
//
// Usage:
//
//	cfg, err := config.Load(config.Path())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Devices {
//	    fmt.Println(d.ID, d.Driver)
//	}
package config
