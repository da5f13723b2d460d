// SPDX-License-Identifier: MIT

// Package report renders analysis results into Discord Markdown and CSV.
package report

import (
	"fmt"
	"strings"

	"github.com/snaptally/snaptally/internal/challenge"
)

// Markdown renders the ranked results. With detailed=true it includes vote
// counts, the first image link and the per-emoji breakdown for each post;
// otherwise only ranks, authors and permalinks. topN is the requested number
// of rank slots; the header counts whichever is smaller, the request or the
// posts that actually received votes.
func Markdown(sum challenge.Summary, groups []challenge.RankGroup, topN int, detailed bool) string {
	var b strings.Builder
	b.WriteString("🏆 **Photo Challenge Results** 🏆\n\n")
	b.WriteString("📊 **Summary:**\n")
	fmt.Fprintf(&b, "• Total photos: `%d`\n", sum.Posts)
	fmt.Fprintf(&b, "• Total votes (excluding authors): `%d`\n", sum.TotalVotes)
	fmt.Fprintf(&b, "• Unique voters: `%d`\n\n", sum.UniqueVoters)

	if len(groups) == 0 {
		b.WriteString("📷 No posts found with external votes to display.")
		return b.String()
	}

	fmt.Fprintf(&b, "🥇 **Top %d Image Posts:**\n\n", min(topN, sum.VotedPosts))

	lines := make([]string, 0, len(groups)*4)
	for _, g := range groups {
		header := fmt.Sprintf("%s **Rank %d**", rankEmoji(g.Rank), g.Rank)
		if detailed {
			header += fmt.Sprintf(" (`%d` votes)", g.Votes)
		}
		lines = append(lines, header)

		for _, post := range g.Posts {
			lines = append(lines, fmt.Sprintf("   📸 **[%s](%s)**", post.Author, post.Link))
			if !detailed {
				continue
			}
			if len(post.ImageURLs) > 0 {
				lines = append(lines, fmt.Sprintf("      🔗 [View Image](%s)", post.ImageURLs[0]))
			}
			emojis := make([]string, 0, len(post.ByEmoji))
			for _, ec := range post.ByEmoji {
				emojis = append(emojis, ec.Emoji)
			}
			voteLine := fmt.Sprintf("      ⭐ %d votes", post.Total)
			if len(emojis) > 0 {
				voteLine += " " + strings.Join(emojis, " ")
			}
			lines = append(lines, voteLine)
		}
		lines = append(lines, "") // spacing between ranks
	}

	b.WriteString(strings.TrimRight(strings.Join(lines, "\n"), "\n"))
	return b.String()
}

// SummaryOnly renders the totals with no names or rankings.
func SummaryOnly(sum challenge.Summary) string {
	var b strings.Builder
	b.WriteString("🏆 **Photo Challenge Summary** 🏆\n\n")
	b.WriteString("📊 **Statistics:**\n")
	fmt.Fprintf(&b, "• Total photos submitted: `%d`\n", sum.Posts)
	fmt.Fprintf(&b, "• Total votes (excluding authors): `%d`\n", sum.TotalVotes)
	fmt.Fprintf(&b, "• Unique voters: `%d`\n\n", sum.UniqueVoters)
	b.WriteString("📷 Analysis complete for this thread.")
	return b.String()
}

func rankEmoji(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d️⃣", rank)
	}
}
