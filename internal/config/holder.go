// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/snaptally/snaptally/internal/log"
)

// Holder keeps the current configuration and supports reloading it from the
// config file while the daemon runs. Only runtime tunables are applied on
// reload; anything that requires a restart (token, listen addresses, cache
// backend) keeps its boot-time value.
type Holder struct {
	mu   sync.RWMutex
	cfg  AppConfig
	path string
}

// NewHolder wraps the boot configuration. path may be empty, in which case
// Reload and Watch are no-ops.
func NewHolder(cfg AppConfig, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Current returns a copy of the active configuration.
func (h *Holder) Current() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload re-reads the config file and applies the runtime tunables.
func (h *Holder) Reload() error {
	if h.path == "" {
		return nil
	}

	fresh, err := Load(h.path)
	if err != nil {
		return err
	}

	h.mu.Lock()
	changedTopN := h.cfg.TopN != fresh.TopN
	changedLevel := h.cfg.LogLevel != fresh.LogLevel
	h.cfg.TopN = fresh.TopN
	h.cfg.FetchConcurrency = fresh.FetchConcurrency
	h.cfg.CacheTTL = fresh.CacheTTL
	h.cfg.LogLevel = fresh.LogLevel
	h.cfg.DefaultThreadURL = fresh.DefaultThreadURL
	h.mu.Unlock()

	if changedLevel {
		log.SetLevel(fresh.LogLevel)
	}

	logger := log.WithComponent("config")
	logger.Info().
		Str("event", "config.reloaded").
		Str("path", h.path).
		Bool("top_n_changed", changedTopN).
		Bool("log_level_changed", changedLevel).
		Msg("configuration reloaded")
	return nil
}

// Watch blocks until ctx is done, reloading whenever the config file changes.
// Editors replace files rather than writing in place, so the parent directory
// is watched and events are debounced.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		return err
	}

	logger := log.WithComponent("config")
	var debounce *time.Timer
	reload := func() {
		if err := h.Reload(); err != nil {
			logger.Error().
				Err(err).
				Str("event", "config.reload_failed").
				Str("path", h.path).
				Msg("config reload failed, keeping previous configuration")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(h.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Str("event", "config.watch_error").Msg("config watcher error")
		}
	}
}
