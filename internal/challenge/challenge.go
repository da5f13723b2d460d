// SPDX-License-Identifier: MIT

// Package challenge implements the photo challenge tally rules: which posts
// count, whose votes count, and how ties rank.
package challenge

import (
	"sort"
	"time"
)

// Vote is a single reaction entry on a post.
type Vote struct {
	Emoji   string // display form ("👍" or "<:name:id>")
	VoterID string
}

// ReactionRef describes one reaction aggregate as reported on a message,
// before the individual voters have been resolved.
type ReactionRef struct {
	Emoji   string // display form
	APIName string // form used on the reactions endpoint ("👍" or "name:id")
	Count   int
}

// Post is an image submission collected from a thread.
type Post struct {
	MessageID string
	ChannelID string
	GuildID   string
	AuthorID  string
	Author    string // display name
	PostedAt  time.Time
	ImageURLs []string
	Reactions []ReactionRef // aggregates from the message, voters not yet resolved
	Votes     []Vote        // every reaction entry, including the author's own
}

// EmojiCount is the per-emoji vote count on a post.
type EmojiCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Tally is a post with its votes counted, self-votes excluded.
type Tally struct {
	Post
	Link    string
	Total   int
	ByEmoji []EmojiCount // sorted by count descending
}

// Summary aggregates a whole thread.
type Summary struct {
	Posts        int `json:"posts"`
	VotedPosts   int `json:"voted_posts"` // posts with at least one external vote
	TotalVotes   int `json:"total_votes"`
	UniqueVoters int `json:"unique_voters"`
}

// RankGroup is one rank slot; posts with identical vote counts share it.
type RankGroup struct {
	Rank  int
	Votes int
	Posts []Tally
}

// PostLink builds the canonical Discord permalink for a message. Outside a
// guild the guild segment falls back to "unknown_guild".
func PostLink(guildID, channelID, messageID string) string {
	if guildID == "" {
		guildID = "unknown_guild"
	}
	return "https://discord.com/channels/" + guildID + "/" + channelID + "/" + messageID
}

// TallyPost counts a post's votes, dropping the author's own reaction
// entries. The per-emoji breakdown is sorted by count descending; equal
// counts sort by emoji for determinism.
func TallyPost(p Post) Tally {
	byEmoji := make(map[string]int)
	total := 0
	for _, v := range p.Votes {
		if v.VoterID == p.AuthorID {
			continue
		}
		total++
		byEmoji[v.Emoji]++
	}

	counts := make([]EmojiCount, 0, len(byEmoji))
	for emoji, n := range byEmoji {
		counts = append(counts, EmojiCount{Emoji: emoji, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Emoji < counts[j].Emoji
	})

	return Tally{
		Post:    p,
		Link:    PostLink(p.GuildID, p.ChannelID, p.MessageID),
		Total:   total,
		ByEmoji: counts,
	}
}

// TallyAll tallies every post.
func TallyAll(posts []Post) []Tally {
	tallies := make([]Tally, 0, len(posts))
	for _, p := range posts {
		tallies = append(tallies, TallyPost(p))
	}
	return tallies
}

// Summarize aggregates tallies into thread totals. Unique voters are distinct
// non-author user IDs across all posts; a user voting on several posts (or
// with several emojis) counts once.
func Summarize(tallies []Tally) Summary {
	total := 0
	voted := 0
	voters := make(map[string]struct{})
	for _, t := range tallies {
		total += t.Total
		if t.Total > 0 {
			voted++
		}
		for _, v := range t.Votes {
			if v.VoterID == t.AuthorID {
				continue
			}
			voters[v.VoterID] = struct{}{}
		}
	}
	return Summary{
		Posts:        len(tallies),
		VotedPosts:   voted,
		TotalVotes:   total,
		UniqueVoters: len(voters),
	}
}

// Rank groups posts with votes into at most topN rank slots. Posts with the
// same vote count share a slot; zero-vote posts never rank. Within a group,
// posts keep chronological order.
func Rank(tallies []Tally, topN int) []RankGroup {
	groups := make(map[int][]Tally)
	for _, t := range tallies {
		if t.Total > 0 {
			groups[t.Total] = append(groups[t.Total], t)
		}
	}
	if len(groups) == 0 {
		return nil
	}

	counts := make([]int, 0, len(groups))
	for n := range groups {
		counts = append(counts, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	out := make([]RankGroup, 0, topN)
	for rank, n := range counts {
		if rank >= topN {
			break
		}
		posts := groups[n]
		sort.Slice(posts, func(i, j int) bool { return posts[i].PostedAt.Before(posts[j].PostedAt) })
		out = append(out, RankGroup{Rank: rank + 1, Votes: n, Posts: posts})
	}
	return out
}
