package config

import "time"

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// ReadHeaderTimeout bounds how long reading request headers may take.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// StreamWriteTimeout bounds a single WebSocket or SSE write. A client
	// that cannot keep up is disconnected rather than stalling the stream.
	StreamWriteTimeout time.Duration `yaml:"stream_write_timeout"`

	// HeartbeatInterval is the spacing of transport-level heartbeat events
	// on progress streams. Consumers may ignore them.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:               ":8080",
		ReadHeaderTimeout:  10 * time.Second,
		StreamWriteTimeout: 10 * time.Second,
		HeartbeatInterval:  30 * time.Second,
	}
}
