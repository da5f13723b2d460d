// SPDX-License-Identifier: MIT

// Package config loads and validates daemon configuration with precedence
// ENV > config file > defaults.
package config

import (
	"fmt"
	"strings"
	"time"
)

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	// Discord
	Token            string
	AppID            string
	GuildID          string
	DefaultThreadURL string

	// HTTP
	ListenAddr     string
	MetricsEnabled bool
	MetricsAddr    string

	// Storage and reports
	DataDir string

	// Logging
	LogLevel string

	// Analysis
	TopN             int
	FetchConcurrency int

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Outbound Discord rate limiting
	DiscordRPS   float64
	DiscordBurst int

	// Telemetry
	TracingEnabled  bool
	OTLPEndpoint    string
	OTLPProtocol    string
	TraceSampleRate float64

	// Readiness
	ReadyStrict bool
}

// defaults returns the built-in configuration.
func defaults() AppConfig {
	return AppConfig{
		ListenAddr:       ":8080",
		MetricsEnabled:   true,
		MetricsAddr:      ":9090",
		DataDir:          "/tmp",
		LogLevel:         "info",
		TopN:             5,
		FetchConcurrency: 4,
		CacheTTL:         10 * time.Minute,
		DiscordRPS:       10,
		DiscordBurst:     20,
		OTLPProtocol:     "grpc",
		TraceSampleRate:  0.1,
	}
}

// Load resolves the configuration: defaults, then the optional YAML file at
// path, then environment variables.
func Load(path string) (AppConfig, error) {
	cfg := defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return AppConfig{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. The original container
// contract (PORT, DISCORD_*) is honored alongside the SNAPTALLY_* keys.
func applyEnv(cfg *AppConfig) {
	cfg.Token = ParseString("DISCORD_BOT_TOKEN", cfg.Token)
	cfg.AppID = ParseString("DISCORD_CLIENT_ID", cfg.AppID)
	cfg.GuildID = ParseString("SNAPTALLY_GUILD_ID", cfg.GuildID)
	cfg.DefaultThreadURL = ParseString("DISCORD_THREAD_URL", cfg.DefaultThreadURL)

	if port := strings.TrimSpace(ParseString("PORT", "")); port != "" {
		cfg.ListenAddr = ":" + port
	}
	cfg.ListenAddr = ParseString("SNAPTALLY_LISTEN", cfg.ListenAddr)

	cfg.MetricsEnabled = ParseBool("SNAPTALLY_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsAddr = ParseString("SNAPTALLY_METRICS_ADDR", cfg.MetricsAddr)

	cfg.DataDir = ParseString("SNAPTALLY_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = ParseString("SNAPTALLY_LOG_LEVEL", cfg.LogLevel)

	cfg.TopN = ParseInt("SNAPTALLY_TOP_N", cfg.TopN)
	cfg.FetchConcurrency = ParseInt("SNAPTALLY_FETCH_CONCURRENCY", cfg.FetchConcurrency)

	cfg.RedisAddr = ParseString("SNAPTALLY_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("SNAPTALLY_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("SNAPTALLY_REDIS_DB", cfg.RedisDB)
	cfg.CacheTTL = ParseDuration("SNAPTALLY_CACHE_TTL", cfg.CacheTTL)

	cfg.DiscordRPS = ParseFloat("SNAPTALLY_DISCORD_RPS", cfg.DiscordRPS)
	cfg.DiscordBurst = ParseInt("SNAPTALLY_DISCORD_BURST", cfg.DiscordBurst)

	cfg.TracingEnabled = ParseBool("SNAPTALLY_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.OTLPEndpoint = ParseString("SNAPTALLY_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.OTLPProtocol = ParseString("SNAPTALLY_OTLP_PROTOCOL", cfg.OTLPProtocol)
	cfg.TraceSampleRate = ParseFloat("SNAPTALLY_TRACE_SAMPLE_RATE", cfg.TraceSampleRate)

	cfg.ReadyStrict = ParseBool("SNAPTALLY_READY_STRICT", cfg.ReadyStrict)
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if c.TopN < 1 || c.TopN > 25 {
		return fmt.Errorf("top N must be in 1..25 (got %d)", c.TopN)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be >= 1 (got %d)", c.FetchConcurrency)
	}
	if c.DiscordRPS <= 0 {
		return fmt.Errorf("discord request rate must be > 0 (got %g)", c.DiscordRPS)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative (got %s)", c.CacheTTL)
	}
	if !strings.HasPrefix(c.ListenAddr, ":") && !strings.Contains(c.ListenAddr, ":") {
		return fmt.Errorf("listen address %q is not host:port or :port", c.ListenAddr)
	}
	switch c.OTLPProtocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("OTLP protocol must be grpc or http (got %q)", c.OTLPProtocol)
	}
	if c.TracingEnabled && strings.TrimSpace(c.OTLPEndpoint) == "" {
		return fmt.Errorf("tracing enabled but SNAPTALLY_OTLP_ENDPOINT is empty")
	}
	return nil
}
