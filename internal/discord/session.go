// SPDX-License-Identifier: MIT

// Package discord wraps the gateway session and REST access used by the bot:
// connection lifecycle, slash command registration, interaction handling and
// the rate-limited thread fetcher.
package discord

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/snaptally/snaptally/internal/log"
	"github.com/snaptally/snaptally/internal/metrics"
)

// Session owns the gateway connection. It tracks connectivity for the
// readiness probes and instruments the underlying REST client.
type Session struct {
	s         *discordgo.Session
	logger    zerolog.Logger
	connected atomic.Bool
}

// NewSession builds a configured but unopened session.
func NewSession(token string) (*Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentMessageContent

	// Outbound REST calls show up in traces alongside the HTTP API spans.
	s.Client = &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	se := &Session{
		s:      s,
		logger: log.WithComponent("discord"),
	}

	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		se.connected.Store(true)
		metrics.SetGatewayConnected(true)
		se.logger.Info().
			Str("event", "gateway.ready").
			Str("bot_user", r.User.Username).
			Int("guilds", len(r.Guilds)).
			Msg("gateway session ready")
	})
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		se.connected.Store(false)
		metrics.SetGatewayConnected(false)
		se.logger.Warn().
			Str("event", "gateway.disconnect").
			Msg("gateway session disconnected")
	})
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		se.connected.Store(true)
		metrics.SetGatewayConnected(true)
		se.logger.Info().
			Str("event", "gateway.resumed").
			Msg("gateway session resumed")
	})

	return se, nil
}

// Open connects to the gateway.
func (se *Session) Open() error {
	if err := se.s.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (se *Session) Close() error {
	se.connected.Store(false)
	metrics.SetGatewayConnected(false)
	return se.s.Close()
}

// Connected reports whether the gateway session is currently up.
func (se *Session) Connected() bool {
	return se.connected.Load()
}

// Raw exposes the underlying discordgo session for REST calls and handlers.
func (se *Session) Raw() *discordgo.Session {
	return se.s
}
