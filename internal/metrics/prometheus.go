// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the challenge progression engine.
var (
	// Counters.
	ChallengeJoinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_joins_total",
			Help: "Total number of challenge join attempts",
		},
		[]string{"status"},
	)

	TasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_tasks_completed_total",
			Help: "Total number of challenge tasks completed",
		},
		[]string{"category"},
	)

	ChallengesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenges_completed_total",
			Help: "Total number of challenges fully completed",
		},
		[]string{"category"},
	)

	ChallengesExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenges_expired_total",
			Help: "Total number of enrollments transitioned to expired",
		},
		[]string{"path"}, // write, read, sweep
	)

	RewardsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_rewards_dispatched_total",
			Help: "Total number of reward dispatches handed to the ledgers",
		},
		[]string{"kind"},
	)

	ReconcileRecoveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_reconcile_recoveries_total",
			Help: "Total number of expired enrollments recovered back to joined",
		},
	)

	// Histograms.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// GinMiddleware records request latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
