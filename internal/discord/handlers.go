// SPDX-License-Identifier: MIT

package discord

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snaptally/snaptally/internal/challenge"
	"github.com/snaptally/snaptally/internal/jobs"
	"github.com/snaptally/snaptally/internal/log"
	"github.com/snaptally/snaptally/internal/metrics"
	"github.com/snaptally/snaptally/internal/report"
)

// analysisTimeout bounds one command execution end to end. Large threads walk
// hundreds of paginated REST calls, so this is generous.
const analysisTimeout = 10 * time.Minute

// Runner executes an analysis. Satisfied by *jobs.Analyzer.
type Runner interface {
	Run(ctx context.Context, req jobs.Request) (jobs.Result, error)
}

// responder is the slice of the REST API the handlers talk to. Satisfied by
// *discordgo.Session; faked in tests.
type responder interface {
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot wires the slash command surface to the analyzer.
type Bot struct {
	session       *Session
	runner        Runner
	appID         string
	guildID       string
	defaultThread func() string
	logger        zerolog.Logger
}

// NewBot builds the Bot and attaches its interaction handler to the session.
// defaultThread is read per invocation so config reloads take effect.
func NewBot(se *Session, runner Runner, appID, guildID string, defaultThread func() string) *Bot {
	b := &Bot{
		session:       se,
		runner:        runner,
		appID:         appID,
		guildID:       guildID,
		defaultThread: defaultThread,
		logger:        log.WithComponent("discord.bot"),
	}
	se.Raw().AddHandler(b.handleInteraction)
	return b
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != commandName {
		return
	}

	operation := "help"
	threadURL := ""
	for _, opt := range data.Options {
		switch opt.Name {
		case "operation":
			operation = opt.StringValue()
		case "thread_url":
			threadURL = opt.StringValue()
		}
	}
	metrics.IncCommand(operation)

	// Acknowledge immediately; the analysis can take minutes.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.logger.Error().Err(err).Str(log.FieldOperation, operation).Msg("failed to defer interaction")
		return
	}

	go b.execute(s, i, operation, threadURL)
}

// execute runs one command invocation off the gateway event loop.
func (b *Bot) execute(rest responder, i *discordgo.InteractionCreate, operation, threadURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()
	ctx = log.ContextWithRequestID(ctx, uuid.NewString())
	logger := log.WithContext(ctx, b.logger)

	user := interactionUser(i)
	if user == nil {
		b.followup(rest, i, "❌ Could not determine who invoked the command.")
		return
	}

	if operation == "help" {
		metrics.IncReportSent("help")
		b.followup(rest, i, helpText)
		return
	}

	if i.Member == nil {
		b.followup(rest, i, "❌ This command only works inside a server.")
		return
	}

	if threadURL == "" {
		threadURL = b.defaultThread()
	}
	if threadURL == "" {
		b.followup(rest, i, "❌ No thread to analyze: pass `thread_url` or configure a default thread.")
		return
	}
	channelID, err := challenge.ExtractThreadID(threadURL)
	if err != nil {
		b.followup(rest, i, fmt.Sprintf("❌ Could not read a thread ID from `%s`.", threadURL))
		return
	}

	res, err := b.runner.Run(ctx, jobs.Request{
		ChannelID:   channelID,
		Operation:   operation,
		RequestedBy: user.ID,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			b.followup(rest, i, "⏳ An analysis is already running, please try again in a moment.")
			return
		}
		logger.Error().Err(err).Str(log.FieldChannelID, channelID).Msg("command execution failed")
		b.followup(rest, i, "❌ The analysis failed. Check the bot logs for details.")
		return
	}

	if operation == "short" {
		metrics.IncReportSent("summary")
		for _, chunk := range report.Split(res.Message, report.MessageLimit) {
			b.followup(rest, i, chunk)
		}
		return
	}

	if err := b.deliverDM(rest, user.ID, res); err != nil {
		logger.Warn().Err(err).Str(log.FieldUserID, user.ID).Msg("DM delivery failed")
		b.followup(rest, i, "⚠️ I could not DM you the results. Do you allow direct messages from server members?")
		return
	}
	b.followup(rest, i, "📬 Results for **"+res.ChannelName+"** sent to your DMs.")
}

// deliverDM sends the full report and the CSV export to the user's DM channel.
func (b *Bot) deliverDM(rest responder, userID string, res jobs.Result) error {
	dm, err := rest.UserChannelCreate(userID)
	metrics.IncDiscordRequest("dm", err)
	if err != nil {
		return fmt.Errorf("open DM channel: %w", err)
	}

	for _, chunk := range report.Split(res.Message, report.MessageLimit) {
		_, err := rest.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{Content: chunk})
		metrics.IncDiscordRequest("dm", err)
		if err != nil {
			return fmt.Errorf("send report chunk: %w", err)
		}
	}
	metrics.IncReportSent("detailed")

	if res.CSVPath != "" {
		f, err := os.Open(res.CSVPath)
		if err != nil {
			return fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()

		_, err = rest.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{
			Content: "📊 Full results as CSV:",
			Files: []*discordgo.File{{
				Name:        filepath.Base(res.CSVPath),
				ContentType: "text/csv",
				Reader:      f,
			}},
		})
		metrics.IncDiscordRequest("dm", err)
		if err != nil {
			return fmt.Errorf("send csv: %w", err)
		}
		metrics.IncReportSent("csv")
	}
	return nil
}

// followup posts an ephemeral followup; failures are logged, not propagated,
// since there is nobody left to tell.
func (b *Bot) followup(rest responder, i *discordgo.InteractionCreate, content string) {
	_, err := rest.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to send followup")
	}
}

// interactionUser returns the invoking user for both guild and DM contexts.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
