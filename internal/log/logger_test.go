// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestConfigureAttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "snaptally", Version: "v1.2.3"})

	logger := Base()
	logger.Info().Msg("hello")

	entry := logLine(t, &buf)
	assert.Equal(t, "snaptally", entry["service"])
	assert.Equal(t, "v1.2.3", entry["version"])
	assert.Equal(t, "hello", entry["message"])
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf})

	logger := WithComponent("jobs")
	logger.Info().Msg("x")

	entry := logLine(t, &buf)
	assert.Equal(t, "jobs", entry[FieldComponent])
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithRunID(ctx, "run-1")

	logger := WithContext(ctx, Base())
	logger.Info().Msg("x")

	entry := logLine(t, &buf)
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "run-1", entry[FieldRunID])
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := ContextWithRequestID(context.Background(), "req-9")
	assert.Equal(t, "req-9", RequestIDFromContext(ctx))
}
