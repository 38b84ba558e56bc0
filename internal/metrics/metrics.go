// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the engine-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lottery_engine",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lottery_engine",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	lotteriesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "core",
			Name:      "lotteries_created_total",
			Help:      "Total number of lotteries created.",
		},
	)

	ticketsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "core",
			Name:      "tickets_sold_total",
			Help:      "Total number of tickets sold across all lotteries.",
		},
	)

	secretsRevealed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "core",
			Name:      "secrets_revealed_total",
			Help:      "Total number of revealed purchase secrets.",
		},
	)

	lotteriesFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "core",
			Name:      "lotteries_finalized_total",
			Help:      "Total number of finalized lottery draws.",
		},
		[]string{"trigger"},
	)

	withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery_engine",
			Subsystem: "treasury",
			Name:      "withdrawals_total",
			Help:      "Total number of treasury withdrawals.",
		},
		[]string{"kind"}, // proceeds | refund
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		lotteriesCreated,
		ticketsSold,
		secretsRevealed,
		lotteriesFinalized,
		withdrawals,
	)
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncrementInFlight tracks an HTTP request entering the stack.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight tracks an HTTP request leaving the stack.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one handled HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLotteryCreated counts a created lottery.
func RecordLotteryCreated() { lotteriesCreated.Inc() }

// RecordTicketsSold counts sold tickets.
func RecordTicketsSold(quantity int) { ticketsSold.Add(float64(quantity)) }

// RecordSecretRevealed counts a revealed secret.
func RecordSecretRevealed() { secretsRevealed.Inc() }

// RecordFinalized counts a finalized draw; trigger is "manual" or "scheduled".
func RecordFinalized(trigger string) { lotteriesFinalized.WithLabelValues(trigger).Inc() }

// RecordWithdrawal counts a treasury withdrawal of the given kind.
func RecordWithdrawal(kind string) { withdrawals.WithLabelValues(kind).Inc() }
