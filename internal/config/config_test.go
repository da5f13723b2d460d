// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_BOT_TOKEN")
}

func TestPortEnvSetsListenAddr(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("PORT", "9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestListenEnvOverridesPort(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("PORT", "9000")
	t.Setenv("SNAPTALLY_LISTEN", "127.0.0.1:7000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("SNAPTALLY_TOP_N", "10")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
analysis:
  topN: 3
  fetchConcurrency: 8
logLevel: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.TopN, "env wins over file")
	assert.Equal(t, 8, cfg.FetchConcurrency, "file wins over default")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")

	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"top N too high", "SNAPTALLY_TOP_N", "26"},
		{"top N too low", "SNAPTALLY_TOP_N", "0"},
		{"zero concurrency", "SNAPTALLY_FETCH_CONCURRENCY", "0"},
		{"negative rps", "SNAPTALLY_DISCORD_RPS", "-1"},
		{"bad otlp protocol", "SNAPTALLY_OTLP_PROTOCOL", "udp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestValidateTracingNeedsEndpoint(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("SNAPTALLY_TRACING_ENABLED", "true")

	_, err := Load("")
	require.Error(t, err)

	t.Setenv("SNAPTALLY_OTLP_ENDPOINT", "localhost:4317")
	_, err = Load("")
	assert.NoError(t, err)
}

func TestHolderReloadAppliesTunablesOnly(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  topN: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(cfg, path)
	assert.Equal(t, 3, h.Current().TopN)

	require.NoError(t, os.WriteFile(path, []byte(`
analysis:
  topN: 7
api:
  listenAddr: ":9999"
`), 0o644))
	require.NoError(t, h.Reload())

	assert.Equal(t, 7, h.Current().TopN)
	assert.Equal(t, ":8080", h.Current().ListenAddr, "listen address needs a restart")
}

func TestHolderReloadKeepsOldConfigOnError(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  topN: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(cfg, path)

	require.NoError(t, os.WriteFile(path, []byte("analysis: ["), 0o644))
	require.Error(t, h.Reload())
	assert.Equal(t, 3, h.Current().TopN)
}

func TestParseBool(t *testing.T) {
	t.Setenv("X_BOOL", "yes")
	assert.True(t, ParseBool("X_BOOL", false))

	t.Setenv("X_BOOL", "0")
	assert.False(t, ParseBool("X_BOOL", true))

	t.Setenv("X_BOOL", "junk")
	assert.True(t, ParseBool("X_BOOL", true), "unparseable keeps the default")
}

func TestParseDuration(t *testing.T) {
	t.Setenv("X_DUR", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("X_DUR", time.Minute))

	t.Setenv("X_DUR", "")
	assert.Equal(t, time.Minute, ParseDuration("X_DUR", time.Minute))
}
