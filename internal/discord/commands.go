// SPDX-License-Identifier: MIT

package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const commandName = "photochallenge"

// helpText is the reply for the help operation.
const helpText = "**📸 Photo Challenge Bot**\n\n" +
	"Counts reactions on image posts in a challenge thread and ranks the results.\n\n" +
	"`/photochallenge operation:full` – detailed ranking with per-emoji breakdown, " +
	"image links and a CSV export, delivered to your DMs.\n" +
	"`/photochallenge operation:short` – quick summary and top list.\n" +
	"`/photochallenge operation:help` – this message.\n\n" +
	"Pass `thread_url` to analyze a specific thread; otherwise the configured " +
	"default thread is used. Only reactions from users other than the poster count as votes."

// commandDefinitions describes the slash commands the bot registers on ready.
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        commandName,
			Description: "Tally reaction votes on image posts in a challenge thread",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "operation",
					Description: "What to run",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Full report (DM with CSV)", Value: "full"},
						{Name: "Short summary", Value: "short"},
						{Name: "Help", Value: "help"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "thread_url",
					Description: "Thread to analyze (defaults to the configured thread)",
					Required:    false,
				},
			},
		},
	}
}

// RegisterCommands overwrites the application's command set. With a guild ID
// the commands are scoped to that guild and show up immediately; without one
// they are registered globally and may take up to an hour to propagate.
func (b *Bot) RegisterCommands() error {
	appID := b.appID
	if appID == "" {
		if u := b.session.Raw().State.User; u != nil {
			appID = u.ID
		}
	}
	if appID == "" {
		return fmt.Errorf("application ID unknown: set DISCORD_CLIENT_ID or wait for the gateway ready event")
	}
	cmds, err := b.session.Raw().ApplicationCommandBulkOverwrite(appID, b.guildID, commandDefinitions())
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.logger.Info().
		Str("event", "commands.registered").
		Int("count", len(cmds)).
		Str("guild_id", b.guildID).
		Msg("slash commands registered")
	return nil
}
