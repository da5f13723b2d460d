// SPDX-License-Identifier: MIT

package config

import "time"

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// ParseServerConfig builds the HTTP server configuration from the
// environment with conservative defaults.
func ParseServerConfig(listenAddr string) ServerConfig {
	return ServerConfig{
		ListenAddr:      listenAddr,
		ReadTimeout:     ParseDuration("SNAPTALLY_HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    ParseDuration("SNAPTALLY_HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     ParseDuration("SNAPTALLY_HTTP_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: ParseDuration("SNAPTALLY_SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxHeaderBytes:  ParseInt("SNAPTALLY_HTTP_MAX_HEADER_BYTES", 1<<20),
	}
}
