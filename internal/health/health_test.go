// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptally/snaptally/internal/store"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                      { return c.name }
func (c staticChecker) Check(context.Context) CheckResult { return c.result }

func TestHealthAlwaysOK(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{name: "broken", result: CheckResult{Status: StatusUnhealthy}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks, "non-verbose health omits components")
}

func TestHealthVerboseIncludesComponents(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{name: "broken", result: CheckResult{Status: StatusUnhealthy}})

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks, "broken")
}

func TestReadyStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		result CheckResult
		code   int
		ready  bool
	}{
		{"healthy", CheckResult{Status: StatusHealthy}, 200, true},
		{"degraded", CheckResult{Status: StatusDegraded}, 200, true},
		{"unhealthy", CheckResult{Status: StatusUnhealthy}, 503, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager("test")
			m.RegisterChecker(staticChecker{name: "c", result: tc.result})

			rec := httptest.NewRecorder()
			m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
			assert.Equal(t, tc.code, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.ready, resp.Ready)
		})
	}
}

func TestGatewayChecker(t *testing.T) {
	up := NewGatewayChecker(func() bool { return true }).Check(context.Background())
	assert.Equal(t, StatusHealthy, up.Status)

	down := NewGatewayChecker(func() bool { return false }).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, down.Status)
}

func TestLastRunChecker(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// Empty history does not block readiness.
	res := NewLastRunChecker(st, false).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)

	failed := store.Run{
		ID: "r1", ChannelID: "ch", Operation: "full",
		StartedAt: time.Now(), FinishedAt: time.Now(),
		Status: "failed", Error: "boom",
	}
	require.NoError(t, st.RecordRun(context.Background(), failed, nil))

	res = NewLastRunChecker(st, false).Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)

	res = NewLastRunChecker(st, true).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)

	ok := store.Run{
		ID: "r2", ChannelID: "ch", Operation: "full",
		StartedAt: time.Now(), FinishedAt: time.Now(),
		Status: "ok",
	}
	require.NoError(t, st.RecordRun(context.Background(), ok, nil))

	res = NewLastRunChecker(st, true).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
}

func TestLastRunCheckerStale(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	stale := store.Run{
		ID: "r1", ChannelID: "ch", Operation: "full",
		StartedAt:  time.Now().Add(-48 * time.Hour),
		FinishedAt: time.Now().Add(-48 * time.Hour),
		Status:     "ok",
	}
	require.NoError(t, st.RecordRun(context.Background(), stale, nil))

	res := NewLastRunChecker(st, false).Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
}

func TestCacheChecker(t *testing.T) {
	res := NewCacheChecker(nil).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)

	res = NewCacheChecker(func(context.Context) error { return nil }).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)

	res = NewCacheChecker(func(context.Context) error { return errors.New("down") }).Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
}
