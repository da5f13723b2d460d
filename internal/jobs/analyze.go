// SPDX-License-Identifier: MIT

// Package jobs runs thread analyses: collect image posts, resolve voters,
// tally and rank, render the report and record the run.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/snaptally/snaptally/internal/challenge"
	"github.com/snaptally/snaptally/internal/log"
	"github.com/snaptally/snaptally/internal/metrics"
	"github.com/snaptally/snaptally/internal/report"
	"github.com/snaptally/snaptally/internal/store"
	"github.com/snaptally/snaptally/internal/telemetry"
)

// ErrBusy is returned when an analysis is requested while another is running.
var ErrBusy = errors.New("an analysis is already running")

// Fetcher reads thread content from Discord.
type Fetcher interface {
	ChannelName(ctx context.Context, channelID string) (string, error)
	ImagePosts(ctx context.Context, channelID string) ([]challenge.Post, error)
	ReactionVoters(ctx context.Context, channelID, messageID string, reaction challenge.ReactionRef) ([]string, error)
}

// Settings are the live-tunable analysis parameters.
type Settings struct {
	TopN             int
	FetchConcurrency int
	DataDir          string
}

// Request describes one analysis invocation.
type Request struct {
	ChannelID   string
	Operation   string // "full" or "short"
	RequestedBy string
}

// Result is a completed analysis ready for delivery.
type Result struct {
	RunID       string
	ChannelName string
	Summary     challenge.Summary
	Groups      []challenge.RankGroup
	Message     string
	CSVPath     string // empty for short runs
}

// Status reflects the analyzer for the status API.
type Status struct {
	Running bool       `json:"running"`
	LastRun *store.Run `json:"last_run,omitempty"`
}

// Analyzer coordinates a full analysis pipeline. Only one analysis runs at a
// time; concurrent requests get ErrBusy instead of queueing, since a second
// walk of the same thread would just double the REST load.
type Analyzer struct {
	fetcher  Fetcher
	store    *store.Store
	settings func() Settings
	logger   zerolog.Logger
	tracer   trace.Tracer
	running  atomic.Bool
}

// New builds an Analyzer. settings is read at the start of every run so
// config reloads take effect without a restart.
func New(fetcher Fetcher, st *store.Store, settings func() Settings) *Analyzer {
	return &Analyzer{
		fetcher:  fetcher,
		store:    st,
		settings: settings,
		logger:   log.WithComponent("jobs"),
		tracer:   telemetry.Tracer("snaptally/jobs"),
	}
}

// Running reports whether an analysis is currently in flight.
func (a *Analyzer) Running() bool {
	return a.running.Load()
}

// Status returns the current analyzer state and the most recent recorded run.
func (a *Analyzer) Status(ctx context.Context) (Status, error) {
	st := Status{Running: a.running.Load()}
	last, ok, err := a.store.LastRun(ctx)
	if err != nil {
		return st, err
	}
	if ok {
		st.LastRun = &last
	}
	return st, nil
}

// Run executes one analysis end to end.
func (a *Analyzer) Run(ctx context.Context, req Request) (Result, error) {
	if !a.running.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer a.running.Store(false)

	runID := uuid.NewString()
	ctx = log.ContextWithRunID(ctx, runID)
	logger := log.WithContext(ctx, a.logger)

	ctx, span := a.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("channel.id", req.ChannelID),
		attribute.String("operation", req.Operation),
	))
	defer span.End()

	started := time.Now()
	logger.Info().
		Str(log.FieldChannelID, req.ChannelID).
		Str(log.FieldOperation, req.Operation).
		Str(log.FieldUserID, req.RequestedBy).
		Msg("analysis started")

	res, err := a.analyze(ctx, runID, started, req)
	dur := time.Since(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordAnalysis(req.Operation, "failure", dur)
		logger.Error().Err(err).Dur("duration", dur).Msg("analysis failed")
		return Result{}, err
	}

	metrics.RecordAnalysis(req.Operation, "success", dur)
	metrics.RecordAnalysisResult(res.Summary.Posts, res.Summary.TotalVotes, res.Summary.UniqueVoters)
	logger.Info().
		Dur("duration", dur).
		Int("posts", res.Summary.Posts).
		Int("votes", res.Summary.TotalVotes).
		Int("voters", res.Summary.UniqueVoters).
		Msg("analysis complete")
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, runID string, started time.Time, req Request) (Result, error) {
	set := a.settings()

	name, err := a.fetcher.ChannelName(ctx, req.ChannelID)
	if err != nil {
		metrics.IncAnalysisFailure("history")
		a.recordFailure(ctx, runID, started, req, "", err)
		return Result{}, err
	}

	posts, err := a.collectPosts(ctx, req.ChannelID, set.FetchConcurrency)
	if err != nil {
		a.recordFailure(ctx, runID, started, req, name, err)
		return Result{}, err
	}

	tallies := challenge.TallyAll(posts)
	sum := challenge.Summarize(tallies)
	groups := challenge.Rank(tallies, set.TopN)

	res := Result{
		RunID:       runID,
		ChannelName: name,
		Summary:     sum,
		Groups:      groups,
		Message:     report.Markdown(sum, groups, set.TopN, req.Operation == "full"),
	}

	if req.Operation == "full" {
		path := filepath.Join(set.DataDir, report.CSVFilename(name))
		if err := report.WriteCSV(path, tallies); err != nil {
			metrics.IncAnalysisFailure("csv")
			a.recordFailure(ctx, runID, started, req, name, err)
			return Result{}, fmt.Errorf("write csv: %w", err)
		}
		res.CSVPath = path
	}

	a.record(ctx, runID, started, req, name, sum, groups)
	return res, nil
}

// collectPosts fetches the thread history and resolves the voters behind
// every reaction. Voter fetches for different posts run concurrently, bounded
// by the configured concurrency.
func (a *Analyzer) collectPosts(ctx context.Context, channelID string, concurrency int) ([]challenge.Post, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.collect")
	defer span.End()

	posts, err := a.fetcher.ImagePosts(ctx, channelID)
	if err != nil {
		metrics.IncAnalysisFailure("history")
		return nil, fmt.Errorf("collect posts: %w", err)
	}
	span.SetAttributes(attribute.Int("posts", len(posts)))

	logger := log.WithContext(ctx, a.logger)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range posts {
		g.Go(func() error {
			p := &posts[i]
			for _, ref := range p.Reactions {
				ids, err := a.fetcher.ReactionVoters(gctx, p.ChannelID, p.MessageID, ref)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					// One unreadable reaction must not sink the whole run;
					// its votes are simply missing from the tally.
					metrics.IncAnalysisFailure("voters")
					logger.Warn().
						Err(err).
						Str(log.FieldMessageID, p.MessageID).
						Str("emoji", ref.Emoji).
						Msg("skipping unreadable reaction")
					continue
				}
				for _, id := range ids {
					p.Votes = append(p.Votes, challenge.Vote{Emoji: ref.Emoji, VoterID: id})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.IncAnalysisFailure("voters")
		return nil, fmt.Errorf("resolve voters: %w", err)
	}
	return posts, nil
}

func (a *Analyzer) record(ctx context.Context, runID string, started time.Time, req Request, name string, sum challenge.Summary, groups []challenge.RankGroup) {
	run := store.Run{
		ID:           runID,
		ChannelID:    req.ChannelID,
		ChannelName:  name,
		RequestedBy:  req.RequestedBy,
		Operation:    req.Operation,
		StartedAt:    started,
		FinishedAt:   time.Now(),
		Posts:        sum.Posts,
		TotalVotes:   sum.TotalVotes,
		UniqueVoters: sum.UniqueVoters,
		Status:       "ok",
	}

	var ranked []store.RankedPost
	for _, g := range groups {
		for _, t := range g.Posts {
			ranked = append(ranked, store.RankedPost{
				RunID:     runID,
				Rank:      g.Rank,
				MessageID: t.MessageID,
				Author:    t.Author,
				Link:      t.Link,
				Votes:     t.Total,
			})
		}
	}

	// History is best effort: a full report beats a complete audit trail.
	if err := a.store.RecordRun(ctx, run, ranked); err != nil {
		metrics.IncAnalysisFailure("persist")
		logger := log.WithContext(ctx, a.logger)
		logger.Warn().Err(err).Msg("failed to record run")
	}
}

func (a *Analyzer) recordFailure(ctx context.Context, runID string, started time.Time, req Request, name string, cause error) {
	run := store.Run{
		ID:          runID,
		ChannelID:   req.ChannelID,
		ChannelName: name,
		RequestedBy: req.RequestedBy,
		Operation:   req.Operation,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Status:      "failed",
		Error:       cause.Error(),
	}
	if err := a.store.RecordRun(ctx, run, nil); err != nil {
		logger := log.WithContext(ctx, a.logger)
		logger.Warn().Err(err).Msg("failed to record failed run")
	}
}
