// SPDX-License-Identifier: MIT

package discord

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/snaptally/snaptally/internal/cache"
	"github.com/snaptally/snaptally/internal/challenge"
	"github.com/snaptally/snaptally/internal/log"
	"github.com/snaptally/snaptally/internal/metrics"
)

const (
	historyPageSize   = 100
	reactionsPageSize = 100
)

// Client reads thread history and reaction voters over the Discord REST API.
// All calls go through a shared token-bucket limiter so a large thread cannot
// trip Discord's global rate limit, and resolved voter lists are memoized.
type Client struct {
	s        *discordgo.Session
	limiter  *rate.Limiter
	cache    cache.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewClient builds a Client on top of an existing session.
func NewClient(se *Session, rps float64, burst int, c cache.Cache, ttl time.Duration) *Client {
	return &Client{
		s:        se.Raw(),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		cache:    c,
		cacheTTL: ttl,
		logger:   log.WithComponent("discord.client"),
	}
}

// ChannelName resolves the display name of a channel or thread.
func (c *Client) ChannelName(ctx context.Context, channelID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ch, err := c.s.Channel(channelID, discordgo.WithContext(ctx))
	metrics.IncDiscordRequest("channel", err)
	if err != nil {
		return "", fmt.Errorf("fetch channel %s: %w", channelID, err)
	}
	return ch.Name, nil
}

// ImagePosts walks the full message history of channelID and returns every
// message carrying at least one image attachment, oldest first. Reaction
// aggregates are captured per post; voters are resolved separately.
func (c *Client) ImagePosts(ctx context.Context, channelID string) ([]challenge.Post, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ch, err := c.s.Channel(channelID, discordgo.WithContext(ctx))
	metrics.IncDiscordRequest("channel", err)
	if err != nil {
		return nil, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}

	var posts []challenge.Post
	beforeID := ""
	pages := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		msgs, err := c.s.ChannelMessages(channelID, historyPageSize, beforeID, "", "", discordgo.WithContext(ctx))
		metrics.IncDiscordRequest("history", err)
		if err != nil {
			return nil, fmt.Errorf("fetch history of %s: %w", channelID, err)
		}
		if len(msgs) == 0 {
			break
		}
		pages++

		for _, m := range msgs {
			post, ok := imagePost(m, ch.GuildID)
			if !ok {
				continue
			}
			posts = append(posts, post)
		}
		// Pages arrive newest first; the oldest message keys the next page.
		beforeID = msgs[len(msgs)-1].ID
		if len(msgs) < historyPageSize {
			break
		}
	}

	sort.Slice(posts, func(i, j int) bool { return posts[i].PostedAt.Before(posts[j].PostedAt) })

	c.logger.Debug().
		Str(log.FieldChannelID, channelID).
		Int("pages", pages).
		Int("image_posts", len(posts)).
		Msg("history collected")
	return posts, nil
}

// ReactionVoters resolves the user IDs behind one reaction aggregate. Results
// are cached per message and emoji so repeated analyses of an active thread
// do not re-walk unchanged reactions.
func (c *Client) ReactionVoters(ctx context.Context, channelID, messageID string, reaction challenge.ReactionRef) ([]string, error) {
	key := voterCacheKey(channelID, messageID, reaction)
	if cached, ok := c.cache.Get(key); ok {
		if ids, ok := voterIDs(cached); ok {
			metrics.IncVoterCache(true)
			return ids, nil
		}
	}
	metrics.IncVoterCache(false)

	var ids []string
	afterID := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		users, err := c.s.MessageReactions(channelID, messageID, reaction.APIName, reactionsPageSize, "", afterID, discordgo.WithContext(ctx))
		metrics.IncDiscordRequest("reactions", err)
		if err != nil {
			return nil, fmt.Errorf("fetch reactions %s on %s: %w", reaction.Emoji, messageID, err)
		}
		if len(users) == 0 {
			break
		}
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		afterID = users[len(users)-1].ID
		if len(users) < reactionsPageSize {
			break
		}
	}

	c.cache.Set(key, ids, c.cacheTTL)
	return ids, nil
}

// imagePost converts a message into a Post when it carries image attachments.
func imagePost(m *discordgo.Message, guildID string) (challenge.Post, bool) {
	if m.Author == nil {
		return challenge.Post{}, false
	}

	var urls []string
	for _, a := range m.Attachments {
		if strings.HasPrefix(a.ContentType, "image/") {
			urls = append(urls, a.URL)
		}
	}
	if len(urls) == 0 {
		return challenge.Post{}, false
	}

	refs := make([]challenge.ReactionRef, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		if r.Emoji == nil || r.Count == 0 {
			continue
		}
		refs = append(refs, challenge.ReactionRef{
			Emoji:   r.Emoji.MessageFormat(),
			APIName: r.Emoji.APIName(),
			Count:   r.Count,
		})
	}

	return challenge.Post{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		GuildID:   guildID,
		AuthorID:  m.Author.ID,
		Author:    displayName(m),
		PostedAt:  m.Timestamp,
		ImageURLs: urls,
		Reactions: refs,
	}, true
}

// displayName picks the best available name for a message author:
// server nick, then global display name, then the account name.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func voterCacheKey(channelID, messageID string, reaction challenge.ReactionRef) string {
	return "voters:" + channelID + ":" + messageID + ":" + reaction.APIName
}

// voterIDs normalizes a cached value. The Redis backend round-trips values
// through JSON, which turns []string into []any.
func voterIDs(v any) ([]string, bool) {
	switch ids := v.(type) {
	case []string:
		return ids, true
	case []any:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			s, ok := id.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case nil:
		return nil, true
	default:
		return nil, false
	}
}
