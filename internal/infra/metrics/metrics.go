// Package metrics provides Prometheus metrics for Stride.
// Counters are fed by a domain.Listener; HTTP and storage metrics are
// observed directly by the api and health layers.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stridefit/stride/internal/domain"
)

// ─── Streaks ────────────────────────────────────────────────────────────────

// StreakTransitions counts persisted streak transitions by outcome event.
var StreakTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "streak_transitions_total",
	Help:      "Persisted streak transitions by event type.",
}, []string{"type"})

// StreakMilestones counts streak milestones reached.
var StreakMilestones = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "streak_milestones_total",
	Help:      "Streak milestones reached.",
}, []string{"milestone"})

// StreakLength observes the streak length after each extension.
var StreakLength = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "stride",
	Name:      "streak_length_days",
	Help:      "Current streak length after an extension.",
	Buckets:   []float64{1, 3, 7, 14, 30, 60, 100, 365},
})

// ─── Activation ─────────────────────────────────────────────────────────────

// ActivationEvents counts tracked activation events by name.
var ActivationEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "activation_events_total",
	Help:      "Tracked activation events by name.",
}, []string{"event"})

// Activations counts profiles crossing the activation threshold.
var Activations = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "activations_total",
	Help:      "Profiles that crossed the activation threshold.",
})

// TimeToActivation observes time to activation in hours.
var TimeToActivation = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "stride",
	Name:      "time_to_activation_hours",
	Help:      "Hours from first event to activation.",
	Buckets:   []float64{0.25, 1, 6, 24, 72, 168, 720},
})

// ActivationMilestones counts activation milestones reached.
var ActivationMilestones = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "activation_milestones_total",
	Help:      "Activation milestones reached.",
}, []string{"milestone"})

// Identifications counts anonymous sessions merged into users.
var Identifications = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "activation_identifications_total",
	Help:      "Anonymous sessions merged into an identified user.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route pattern and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "http_requests_total",
	Help:      "API requests by route and status code.",
}, []string{"route", "method", "status"})

// HTTPLatency tracks API request duration in seconds.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "stride",
	Name:      "http_request_duration_seconds",
	Help:      "API request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "stride",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stride",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})

// ─── Listener ───────────────────────────────────────────────────────────────

// Listener converts domain events into metric updates.
type Listener struct{}

var _ domain.Listener = Listener{}

// HandleEvent implements domain.Listener.
func (Listener) HandleEvent(_ context.Context, evt domain.Event) {
	switch p := evt.Payload.(type) {
	case domain.StreakPayloadV1:
		if evt.Type == domain.EventStreakMilestone {
			StreakMilestones.WithLabelValues(p.MilestoneID).Inc()
			return
		}
		StreakTransitions.WithLabelValues(string(evt.Type)).Inc()
		if evt.Type == domain.EventStreakExtended {
			StreakLength.Observe(float64(p.CurrentStreak))
		}
	case domain.ActivationPayloadV1:
		switch evt.Type {
		case domain.EventActivationTracked:
			ActivationEvents.WithLabelValues(p.EventName).Inc()
		case domain.EventActivationActivated:
			Activations.Inc()
			TimeToActivation.Observe(p.TimeToActivate.Hours())
		case domain.EventActivationMilestone:
			ActivationMilestones.WithLabelValues(p.MilestoneID).Inc()
		case domain.EventActivationIdentified:
			Identifications.Inc()
		}
	}
}
