package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// reportsCreatedTotal tracks accepted public reports by tag
	reportsCreatedTotal *prometheus.CounterVec

	// reportRejectionsTotal tracks sanitizer rejections by reason
	reportRejectionsTotal *prometheus.CounterVec

	// reportVotesTotal tracks vote transitions by action and type
	reportVotesTotal *prometheus.CounterVec

	// reportFlagsTotal tracks community flags by reason
	reportFlagsTotal *prometheus.CounterVec

	// reportAutoHidesTotal counts reports hidden by the flag threshold
	reportAutoHidesTotal prometheus.Counter

	// moderationActionsTotal tracks admin moderation actions
	moderationActionsTotal *prometheus.CounterVec

	// reportConfidence tracks the distribution of stored scores
	reportConfidence prometheus.Histogram

	// rateLimitedTotal counts requests rejected by the rate limiter
	rateLimitedTotal prometheus.Counter
)

// Init registers all Prometheus metrics for the report pipeline.
// This should be called once at application startup.
func Init() {
	metricsOnce.Do(func() {
		reportsCreatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_created_total",
				Help: "Total number of accepted public reports by tag",
			},
			[]string{"tag"},
		)

		reportRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_rejections_total",
				Help: "Total number of sanitizer rejections by reason",
			},
			[]string{"reason"},
		)

		reportVotesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_votes_total",
				Help: "Total number of vote transitions by action and vote type",
			},
			[]string{"action", "vote_type"},
		)

		reportFlagsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_flags_total",
				Help: "Total number of community flags by reason",
			},
			[]string{"reason"},
		)

		reportAutoHidesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "report_auto_hides_total",
				Help: "Total number of reports hidden by the flag threshold",
			},
		)

		moderationActionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moderation_actions_total",
				Help: "Total number of admin moderation actions by action",
			},
			[]string{"action"},
		)

		reportConfidence = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "report_confidence",
				Help:    "Distribution of computed confidence scores (0-100)",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		)
	})
}

// RecordReportCreated records an accepted report and its initial score.
func RecordReportCreated(tag string, confidence int) {
	if reportsCreatedTotal != nil {
		reportsCreatedTotal.WithLabelValues(tag).Inc()
	}
	RecordConfidence(confidence)
}

// RecordRejection records a sanitizer rejection.
// reason: "MISSING_LOCATION", "DESCRIPTION_TOO_SHORT", "UNSAFE_CONTENT", "malformed"
func RecordRejection(reason string) {
	if reportRejectionsTotal != nil {
		reportRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// RecordVote records a vote transition.
// action: "added", "changed", "removed"
func RecordVote(action, voteType string) {
	if reportVotesTotal != nil {
		reportVotesTotal.WithLabelValues(action, voteType).Inc()
	}
}

// RecordFlag records a community flag by reason.
func RecordFlag(reason string) {
	if reportFlagsTotal != nil {
		reportFlagsTotal.WithLabelValues(reason).Inc()
	}
}

// RecordAutoHide records a report crossing the auto-hide threshold.
func RecordAutoHide() {
	if reportAutoHidesTotal != nil {
		reportAutoHidesTotal.Inc()
	}
}

// RecordModeration records an admin action.
// action: "hide", "unhide", "verify", "unverify", "delete", "resolve_flags"
func RecordModeration(action string) {
	if moderationActionsTotal != nil {
		moderationActionsTotal.WithLabelValues(action).Inc()
	}
}

// RecordConfidence records a freshly computed score.
func RecordConfidence(score int) {
	if reportConfidence != nil {
		reportConfidence.Observe(float64(score))
	}
}

// RecordRateLimited records a request turned away by the limiter.
func RecordRateLimited() {
	if rateLimitedTotal != nil {
		rateLimitedTotal.Inc()
	}
}
