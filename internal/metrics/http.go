// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snaptally_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snaptally_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snaptally_http_requests_in_flight",
		Help: "HTTP requests currently being served",
	})
)

func ObserveHTTPRequest(method, route, code string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func IncHTTPInFlight() { httpRequestsInFlight.Inc() }
func DecHTTPInFlight() { httpRequestsInFlight.Dec() }
