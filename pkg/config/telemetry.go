package config

// TelemetryConfig controls the OpenTelemetry metrics provider.
type TelemetryConfig struct {
	// Enabled wires a Prometheus exporter and serves metrics on /metrics.
	Enabled bool `yaml:"enabled"`

	// ServiceName is reported as the OTel service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}

// DefaultTelemetryConfig returns the built-in telemetry defaults.
func DefaultTelemetryConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:     true,
		ServiceName: "deepread",
	}
}
