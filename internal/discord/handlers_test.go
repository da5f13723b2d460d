// SPDX-License-Identifier: MIT

package discord

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptally/snaptally/internal/challenge"
	"github.com/snaptally/snaptally/internal/jobs"
)

type fakeResponder struct {
	followups  []string
	dmContents []string
	dmFiles    []string
	dmErr      error
	channelErr error
}

func (f *fakeResponder) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.followups = append(f.followups, data.Content)
	return &discordgo.Message{}, nil
}

func (f *fakeResponder) UserChannelCreate(string, ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return &discordgo.Channel{ID: "dm-chan"}, nil
}

func (f *fakeResponder) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.dmErr != nil {
		return nil, f.dmErr
	}
	f.dmContents = append(f.dmContents, data.Content)
	for _, file := range data.Files {
		f.dmFiles = append(f.dmFiles, file.Name)
	}
	return &discordgo.Message{}, nil
}

type fakeRunner struct {
	req jobs.Request
	res jobs.Result
	err error
}

func (r *fakeRunner) Run(_ context.Context, req jobs.Request) (jobs.Result, error) {
	r.req = req
	return r.res, r.err
}

func guildInteraction() *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}},
	}}
}

func newTestBot(runner Runner, defaultThread string) *Bot {
	return &Bot{
		runner:        runner,
		defaultThread: func() string { return defaultThread },
	}
}

func TestExecuteHelp(t *testing.T) {
	rest := &fakeResponder{}
	runner := &fakeRunner{}
	b := newTestBot(runner, "")

	b.execute(rest, guildInteraction(), "help", "")

	require.Len(t, rest.followups, 1)
	assert.Contains(t, rest.followups[0], "Photo Challenge Bot")
	assert.Empty(t, runner.req.ChannelID, "help must not start an analysis")
}

func TestExecuteRequiresGuild(t *testing.T) {
	rest := &fakeResponder{}
	b := newTestBot(&fakeRunner{}, "")
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "u1"},
	}}

	b.execute(rest, i, "short", "")

	require.Len(t, rest.followups, 1)
	assert.Contains(t, rest.followups[0], "inside a server")
}

func TestExecuteRequiresThreadURL(t *testing.T) {
	rest := &fakeResponder{}
	b := newTestBot(&fakeRunner{}, "")

	b.execute(rest, guildInteraction(), "short", "")

	require.Len(t, rest.followups, 1)
	assert.Contains(t, rest.followups[0], "No thread to analyze")
}

func TestExecuteShortRepliesEphemerally(t *testing.T) {
	rest := &fakeResponder{}
	runner := &fakeRunner{res: jobs.Result{
		ChannelName: "aug",
		Message:     "short summary",
	}}
	b := newTestBot(runner, "https://discord.com/channels/1/234567890123456789")

	b.execute(rest, guildInteraction(), "short", "")

	assert.Equal(t, "234567890123456789", runner.req.ChannelID)
	assert.Equal(t, "short", runner.req.Operation)
	assert.Equal(t, "u1", runner.req.RequestedBy)
	require.Len(t, rest.followups, 1)
	assert.Equal(t, "short summary", rest.followups[0])
}

func TestExecuteFullDeliversDM(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "aug-results.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("post_link\n"), 0o644))

	rest := &fakeResponder{}
	runner := &fakeRunner{res: jobs.Result{
		ChannelName: "aug",
		Message:     "full report",
		CSVPath:     csvPath,
	}}
	b := newTestBot(runner, "")

	b.execute(rest, guildInteraction(), "full", "https://discord.com/channels/1/99")

	assert.Equal(t, "99", runner.req.ChannelID)
	require.Len(t, rest.dmContents, 2)
	assert.Equal(t, "full report", rest.dmContents[0])
	assert.Equal(t, []string{"aug-results.csv"}, rest.dmFiles)
	require.Len(t, rest.followups, 1)
	assert.Contains(t, rest.followups[0], "sent to your DMs")
}

func TestExecuteReportsDMFailure(t *testing.T) {
	rest := &fakeResponder{channelErr: errors.New("cannot send messages to this user")}
	runner := &fakeRunner{res: jobs.Result{ChannelName: "aug", Message: "report"}}
	b := newTestBot(runner, "")

	b.execute(rest, guildInteraction(), "full", "https://discord.com/channels/1/99")

	require.Len(t, rest.followups, 1)
	assert.Contains(t, rest.followups[0], "could not DM you")
}

func TestExecuteBusy(t *testing.T) {
	rest := &fakeResponder{}
	b := newTestBot(&fakeRunner{err: jobs.ErrBusy}, "")

	b.execute(rest, guildInteraction(), "full", "https://discord.com/channels/1/99")

	require.Len(t, rest.followups, 1)
	assert.Contains(t, rest.followups[0], "already running")
}

func TestImagePostFiltersAttachments(t *testing.T) {
	m := &discordgo.Message{
		ID:        "m1",
		ChannelID: "ch",
		Author:    &discordgo.User{ID: "a", Username: "alice", GlobalName: "Alice"},
		Attachments: []*discordgo.MessageAttachment{
			{URL: "https://cdn/a.png", ContentType: "image/png"},
			{URL: "https://cdn/notes.txt", ContentType: "text/plain"},
		},
		Reactions: []*discordgo.MessageReactions{
			{Count: 2, Emoji: &discordgo.Emoji{Name: "👍"}},
		},
	}

	post, ok := imagePost(m, "g1")
	require.True(t, ok)
	assert.Equal(t, []string{"https://cdn/a.png"}, post.ImageURLs)
	assert.Equal(t, "g1", post.GuildID)
	assert.Equal(t, "Alice", post.Author)
	require.Len(t, post.Reactions, 1)
	assert.Equal(t, challenge.ReactionRef{Emoji: "👍", APIName: "👍", Count: 2}, post.Reactions[0])
}

func TestImagePostSkipsTextOnly(t *testing.T) {
	m := &discordgo.Message{
		Author:      &discordgo.User{ID: "a"},
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn/x.pdf", ContentType: "application/pdf"}},
	}
	_, ok := imagePost(m, "g1")
	assert.False(t, ok)
}

func TestDisplayNamePrecedence(t *testing.T) {
	m := &discordgo.Message{
		Author: &discordgo.User{Username: "alice", GlobalName: "Alice G"},
		Member: &discordgo.Member{Nick: "Ali"},
	}
	assert.Equal(t, "Ali", displayName(m))

	m.Member = nil
	assert.Equal(t, "Alice G", displayName(m))

	m.Author.GlobalName = ""
	assert.Equal(t, "alice", displayName(m))
}

func TestVoterIDsNormalizesCachedValues(t *testing.T) {
	ids, ok := voterIDs([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)

	// The Redis backend returns JSON-decoded values.
	ids, ok = voterIDs([]any{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, ok = voterIDs(42)
	assert.False(t, ok)
}
