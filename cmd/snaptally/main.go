// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snaptally/snaptally/internal/api"
	"github.com/snaptally/snaptally/internal/cache"
	"github.com/snaptally/snaptally/internal/config"
	"github.com/snaptally/snaptally/internal/daemon"
	"github.com/snaptally/snaptally/internal/discord"
	"github.com/snaptally/snaptally/internal/health"
	"github.com/snaptally/snaptally/internal/jobs"
	stlog "github.com/snaptally/snaptally/internal/log"
	"github.com/snaptally/snaptally/internal/store"
	"github.com/snaptally/snaptally/internal/telemetry"
	"github.com/snaptally/snaptally/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.BuildDate)
		os.Exit(0)
	}

	// Safe defaults until the configuration is loaded.
	stlog.Configure(stlog.Config{
		Level:   "info",
		Service: "snaptally",
		Version: version.Version,
	})
	logger := stlog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without an explicit --config, pick up ${SNAPTALLY_DATA_DIR}/config.yaml
	// when it exists.
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("SNAPTALLY_DATA_DIR", "/tmp"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	cfg, err := config.Load(effectiveConfigPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	stlog.Configure(stlog.Config{
		Level:   cfg.LogLevel,
		Service: "snaptally",
		Version: version.Version,
	})
	logger.Info().
		Str("event", "config.loaded").
		Str("config_path", effectiveConfigPath).
		Str("listen", cfg.ListenAddr).
		Msg("configuration loaded")

	if err := run(ctx, cfg, effectiveConfigPath); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Msg("daemon stopped")
}

func run(ctx context.Context, cfg config.AppConfig, configPath string) error {
	logger := stlog.WithComponent("main")

	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "snaptally",
		ServiceVersion: version.Version,
		Environment:    config.ParseString("SNAPTALLY_ENV", "production"),
		ExporterType:   cfg.OTLPProtocol,
		Endpoint:       cfg.OTLPEndpoint,
		SamplingRate:   cfg.TraceSampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	st, err := store.New(filepath.Join(cfg.DataDir, "snaptally.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	voterCache, cacheCheck := buildCache(cfg, logger)

	session, err := discord.NewSession(cfg.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	holder := config.NewHolder(cfg, configPath)
	if configPath != "" {
		go func() {
			if err := holder.Watch(ctx); err != nil {
				logger.Warn().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	client := discord.NewClient(session, cfg.DiscordRPS, cfg.DiscordBurst, voterCache, cfg.CacheTTL)
	analyzer := jobs.New(client, st, func() jobs.Settings {
		c := holder.Current()
		return jobs.Settings{
			TopN:             c.TopN,
			FetchConcurrency: c.FetchConcurrency,
			DataDir:          c.DataDir,
		}
	})
	bot := discord.NewBot(session, analyzer, cfg.AppID, cfg.GuildID, func() string {
		return holder.Current().DefaultThreadURL
	})

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewGatewayChecker(session.Connected))
	hm.RegisterChecker(health.NewStoreChecker(st))
	hm.RegisterChecker(health.NewLastRunChecker(st, cfg.ReadyStrict))
	hm.RegisterChecker(health.NewCacheChecker(cacheCheck))

	apiServer := api.New(hm, analyzer, st, session.Connected)

	metricsAddr := ""
	var metricsHandler = promhttp.Handler()
	if cfg.MetricsEnabled {
		metricsAddr = cfg.MetricsAddr
	} else {
		metricsHandler = nil
	}

	manager, err := daemon.NewManager(config.ParseServerConfig(cfg.ListenAddr), apiServer.Handler(), metricsAddr, metricsHandler)
	if err != nil {
		return fmt.Errorf("create daemon manager: %w", err)
	}

	manager.RegisterShutdownHook("telemetry", tracer.Shutdown)
	manager.RegisterShutdownHook("store", func(context.Context) error { return st.Close() })
	manager.RegisterShutdownHook("cache", func(context.Context) error { return voterCache.Close() })

	if err := session.Open(); err != nil {
		return fmt.Errorf("connect to discord: %w", err)
	}
	manager.RegisterShutdownHook("discord", func(context.Context) error { return session.Close() })

	if err := registerCommandsWithRetry(ctx, bot, logger); err != nil {
		return err
	}

	apiServer.SetReady(true)
	return manager.Start(ctx)
}

// buildCache picks the voter cache backend: Redis when configured, the
// in-process cache otherwise, and no caching at all with a zero TTL. The
// second return is a backend ping for the health checks, nil when the
// backend has none.
func buildCache(cfg config.AppConfig, logger zerolog.Logger) (cache.Cache, func(context.Context) error) {
	if cfg.CacheTTL == 0 {
		logger.Info().Str("backend", "none").Msg("voter cache disabled")
		return cache.NewNoOpCache(), nil
	}

	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).
				Str("addr", cfg.RedisAddr).
				Msg("redis unreachable, falling back to in-process cache")
		} else {
			logger.Info().Str("backend", "redis").Str("addr", cfg.RedisAddr).Msg("voter cache ready")
			return rc, rc.HealthCheck
		}
	}

	logger.Info().Str("backend", "memory").Msg("voter cache ready")
	return cache.NewMemoryCache(time.Minute), nil
}

// registerCommandsWithRetry retries command registration briefly: with no
// DISCORD_CLIENT_ID configured the application ID only becomes known once the
// gateway delivers the ready event.
func registerCommandsWithRetry(ctx context.Context, bot *discord.Bot, logger zerolog.Logger) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if err = bot.RegisterCommands(); err == nil {
			return nil
		}
		logger.Warn().Err(err).Int("attempt", attempt+1).Msg("command registration failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("register commands: %w", err)
}
