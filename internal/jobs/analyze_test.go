// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptally/snaptally/internal/challenge"
	"github.com/snaptally/snaptally/internal/store"
)

type fakeFetcher struct {
	mu      sync.Mutex
	name    string
	posts   []challenge.Post
	voters  map[string][]string // messageID:apiName -> voter IDs
	histErr error
	voteErr error
	waitCh  chan struct{} // when set, ImagePosts blocks until closed
}

func (f *fakeFetcher) ChannelName(context.Context, string) (string, error) {
	if f.histErr != nil {
		return "", f.histErr
	}
	return f.name, nil
}

func (f *fakeFetcher) ImagePosts(ctx context.Context, _ string) ([]challenge.Post, error) {
	if f.waitCh != nil {
		select {
		case <-f.waitCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.posts, nil
}

func (f *fakeFetcher) ReactionVoters(_ context.Context, _, messageID string, r challenge.ReactionRef) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voteErr != nil {
		return nil, f.voteErr
	}
	return f.voters[messageID+":"+r.APIName], nil
}

func newTestAnalyzer(t *testing.T, f Fetcher) (*Analyzer, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	a := New(f, st, func() Settings {
		return Settings{TopN: 5, FetchConcurrency: 3, DataDir: dir}
	})
	return a, st, dir
}

func challengePosts() []challenge.Post {
	base := time.Date(2026, 8, 14, 18, 30, 0, 0, time.UTC)
	return []challenge.Post{
		{
			MessageID: "m1", ChannelID: "ch", GuildID: "g", AuthorID: "alice", Author: "Alice",
			PostedAt:  base,
			ImageURLs: []string{"https://cdn.example/a.png"},
			Reactions: []challenge.ReactionRef{{Emoji: "👍", APIName: "👍", Count: 3}},
		},
		{
			MessageID: "m2", ChannelID: "ch", GuildID: "g", AuthorID: "bob", Author: "Bob",
			PostedAt:  base.Add(time.Minute),
			ImageURLs: []string{"https://cdn.example/b.png"},
			Reactions: []challenge.ReactionRef{{Emoji: "❤️", APIName: "❤️", Count: 1}},
		},
	}
}

func TestRunFullProducesReportAndCSV(t *testing.T) {
	f := &fakeFetcher{
		name:  "August Challenge",
		posts: challengePosts(),
		voters: map[string][]string{
			"m1:👍":  {"bob", "carol", "alice"}, // author's own vote must not count
			"m2:❤️": {"carol"},
		},
	}
	a, st, dir := newTestAnalyzer(t, f)

	res, err := a.Run(context.Background(), Request{ChannelID: "ch", Operation: "full", RequestedBy: "carol"})
	require.NoError(t, err)

	assert.Equal(t, "August Challenge", res.ChannelName)
	assert.Equal(t, 2, res.Summary.Posts)
	assert.Equal(t, 3, res.Summary.TotalVotes)
	assert.Equal(t, 2, res.Summary.UniqueVoters)
	require.Len(t, res.Groups, 2)
	assert.Equal(t, 2, res.Groups[0].Votes)
	assert.Contains(t, res.Message, "Photo Challenge Results")

	require.NotEmpty(t, res.CSVPath)
	assert.Equal(t, filepath.Join(dir, "august-challenge-results.csv"), res.CSVPath)
	data, err := os.ReadFile(res.CSVPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "post_link,image_links,posted_at,author,reactions")

	last, ok, err := st.LastRun(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.RunID, last.ID)
	assert.Equal(t, "ok", last.Status)
	assert.Equal(t, 3, last.TotalVotes)

	ranked, err := st.RankedPosts(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestRunShortSkipsCSV(t *testing.T) {
	f := &fakeFetcher{
		name:   "aug",
		posts:  challengePosts(),
		voters: map[string][]string{"m1:👍": {"bob"}},
	}
	a, _, _ := newTestAnalyzer(t, f)

	res, err := a.Run(context.Background(), Request{ChannelID: "ch", Operation: "short", RequestedBy: "u"})
	require.NoError(t, err)
	assert.Empty(t, res.CSVPath)
	assert.NotContains(t, res.Message, "View Image")
}

func TestRunRecordsFailure(t *testing.T) {
	f := &fakeFetcher{histErr: errors.New("boom")}
	a, st, _ := newTestAnalyzer(t, f)

	_, err := a.Run(context.Background(), Request{ChannelID: "ch", Operation: "full", RequestedBy: "u"})
	require.Error(t, err)

	last, ok, err := st.LastRun(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "failed", last.Status)
	assert.Equal(t, "boom", last.Error)
}

func TestRunSkipsUnreadableReactions(t *testing.T) {
	f := &fakeFetcher{
		name:    "aug",
		posts:   challengePosts(),
		voteErr: errors.New("missing access"),
	}
	a, st, _ := newTestAnalyzer(t, f)

	res, err := a.Run(context.Background(), Request{ChannelID: "ch", Operation: "short", RequestedBy: "u"})
	require.NoError(t, err, "a broken reaction must not fail the run")
	assert.Equal(t, 2, res.Summary.Posts)
	assert.Equal(t, 0, res.Summary.TotalVotes)

	last, ok, err := st.LastRun(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ok", last.Status)
}

func TestRunRejectsConcurrentAnalyses(t *testing.T) {
	f := &fakeFetcher{name: "aug", waitCh: make(chan struct{})}
	a, _, _ := newTestAnalyzer(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := a.Run(context.Background(), Request{ChannelID: "ch", Operation: "short"})
		done <- err
	}()

	// Wait for the first run to take the slot.
	require.Eventually(t, a.Running, time.Second, 5*time.Millisecond)

	_, err := a.Run(context.Background(), Request{ChannelID: "ch", Operation: "short"})
	assert.ErrorIs(t, err, ErrBusy)

	close(f.waitCh)
	require.NoError(t, <-done)
	assert.False(t, a.Running())
}

func TestStatusReportsLastRun(t *testing.T) {
	f := &fakeFetcher{name: "aug", posts: challengePosts(), voters: map[string][]string{"m1:👍": {"x"}}}
	a, _, _ := newTestAnalyzer(t, f)

	st0, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st0.Running)
	assert.Nil(t, st0.LastRun)

	res, err := a.Run(context.Background(), Request{ChannelID: "ch", Operation: "short", RequestedBy: "u"})
	require.NoError(t, err)

	st1, err := a.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st1.LastRun)
	assert.Equal(t, res.RunID, st1.LastRun.ID)
}
