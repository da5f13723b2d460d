// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"time"

	"github.com/snaptally/snaptally/internal/store"
)

// GatewayChecker reports whether the Discord gateway session is connected.
// The bot cannot serve commands without it, so a dropped session makes the
// process unready.
type GatewayChecker struct {
	connected func() bool
}

func NewGatewayChecker(connected func() bool) *GatewayChecker {
	return &GatewayChecker{connected: connected}
}

func (c *GatewayChecker) Name() string { return "discord_gateway" }

func (c *GatewayChecker) Check(_ context.Context) CheckResult {
	if c.connected() {
		return CheckResult{Status: StatusHealthy, Message: "gateway session connected"}
	}
	return CheckResult{Status: StatusUnhealthy, Error: "gateway session disconnected"}
}

// StoreChecker verifies the run history database answers queries.
type StoreChecker struct {
	store *store.Store
}

func NewStoreChecker(st *store.Store) *StoreChecker {
	return &StoreChecker{store: st}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, _, err := c.store.LastRun(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "database reachable"}
}

// LastRunChecker inspects the most recent analysis. A failed or stale run is
// normally only degraded, since the bot can still take new commands; strict
// mode escalates a failed run to unhealthy.
type LastRunChecker struct {
	store  *store.Store
	strict bool
}

func NewLastRunChecker(st *store.Store, strict bool) *LastRunChecker {
	return &LastRunChecker{store: st, strict: strict}
}

func (c *LastRunChecker) Name() string { return "last_run" }

func (c *LastRunChecker) Check(ctx context.Context) CheckResult {
	run, ok, err := c.store.LastRun(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !ok {
		return CheckResult{Status: StatusHealthy, Message: "no analysis run yet"}
	}

	if run.Status != "ok" {
		status := StatusDegraded
		if c.strict {
			status = StatusUnhealthy
		}
		return CheckResult{Status: status, Error: run.Error, Message: "last analysis failed"}
	}

	if time.Since(run.FinishedAt) > 24*time.Hour {
		return CheckResult{Status: StatusDegraded, Message: "last successful analysis over 24h ago"}
	}
	return CheckResult{Status: StatusHealthy, Message: "last analysis successful"}
}

// CacheChecker pings the cache backend when it supports health checks.
type CacheChecker struct {
	ping func(ctx context.Context) error
}

// NewCacheChecker wraps a backend ping; pass nil for backends without one
// (the in-memory cache), which always report healthy.
func NewCacheChecker(ping func(ctx context.Context) error) *CacheChecker {
	return &CacheChecker{ping: ping}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	if c.ping == nil {
		return CheckResult{Status: StatusHealthy, Message: "in-process cache"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		// The cache only saves REST calls; losing it degrades, not downs.
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "cache reachable"}
}
