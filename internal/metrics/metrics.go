// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus instrumentation for the daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snaptally_analyses_total",
		Help: "Analysis runs by operation and outcome",
	}, []string{"operation", "outcome"}) // outcome=success|failure

	analysisFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snaptally_analysis_failures_total",
		Help: "Analysis failures by stage",
	}, []string{"stage"}) // stage=history|voters|csv|persist|deliver

	analysisDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snaptally_analysis_duration_seconds",
		Help:    "Wall time of a complete thread analysis",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	imagePostsLast = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snaptally_image_posts_last",
		Help: "Image posts found in the last analysis",
	})

	votesLast = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snaptally_votes_last",
		Help: "Votes counted in the last analysis (self-votes excluded)",
	})

	uniqueVotersLast = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snaptally_unique_voters_last",
		Help: "Unique voters in the last analysis",
	})

	discordRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snaptally_discord_requests_total",
		Help: "Discord REST calls by kind and outcome",
	}, []string{"kind", "outcome"}) // kind=history|reactions|channel|dm

	reportsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snaptally_reports_sent_total",
		Help: "Reports delivered via DM by kind",
	}, []string{"kind"}) // kind=csv|summary|detailed|help

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snaptally_commands_total",
		Help: "Slash command invocations by operation",
	}, []string{"operation"})

	gatewayConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snaptally_gateway_connected",
		Help: "Whether the Discord gateway session is connected (1) or not (0)",
	})

	voterCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snaptally_voter_cache_total",
		Help: "Voter list cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss
)

func RecordAnalysis(operation, outcome string, d time.Duration) {
	analysesTotal.WithLabelValues(operation, outcome).Inc()
	analysisDurationSeconds.Observe(d.Seconds())
}

func IncAnalysisFailure(stage string) { analysisFailuresTotal.WithLabelValues(stage).Inc() }

func RecordAnalysisResult(posts, votes, voters int) {
	imagePostsLast.Set(float64(posts))
	votesLast.Set(float64(votes))
	uniqueVotersLast.Set(float64(voters))
}

func IncDiscordRequest(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	discordRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

func IncReportSent(kind string) { reportsSentTotal.WithLabelValues(kind).Inc() }

func IncCommand(operation string) { commandsTotal.WithLabelValues(operation).Inc() }

func SetGatewayConnected(up bool) {
	if up {
		gatewayConnected.Set(1)
		return
	}
	gatewayConnected.Set(0)
}

func IncVoterCache(hit bool) {
	if hit {
		voterCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	voterCacheTotal.WithLabelValues("miss").Inc()
}
