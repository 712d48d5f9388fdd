package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stridefit/stride/internal/domain"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestListener_StreakEvents(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := Listener{}

	before := testutil.ToFloat64(StreakTransitions.WithLabelValues(string(domain.EventStreakExtended)))
	l.HandleEvent(ctx, domain.NewEvent(domain.EventStreakExtended, "u1", now, domain.StreakPayloadV1{CurrentStreak: 4}))
	after := testutil.ToFloat64(StreakTransitions.WithLabelValues(string(domain.EventStreakExtended)))
	if after-before != 1 {
		t.Errorf("extended delta = %v, want 1", after-before)
	}

	mBefore := testutil.ToFloat64(StreakMilestones.WithLabelValues("week_warrior"))
	l.HandleEvent(ctx, domain.NewEvent(domain.EventStreakMilestone, "u1", now, domain.StreakPayloadV1{MilestoneID: "week_warrior"}))
	if got := testutil.ToFloat64(StreakMilestones.WithLabelValues("week_warrior")) - mBefore; got != 1 {
		t.Errorf("milestone delta = %v, want 1", got)
	}
	// Milestone events do not count as transitions.
	if got := testutil.ToFloat64(StreakTransitions.WithLabelValues(string(domain.EventStreakMilestone))); got != 0 {
		t.Errorf("milestone counted as transition: %v", got)
	}
}

func TestListener_ActivationEvents(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := Listener{}

	evBefore := testutil.ToFloat64(ActivationEvents.WithLabelValues("goal_set"))
	actBefore := testutil.ToFloat64(Activations)
	idBefore := testutil.ToFloat64(Identifications)

	l.HandleEvent(ctx, domain.NewEvent(domain.EventActivationTracked, "s1", now, domain.ActivationPayloadV1{EventName: "goal_set", Points: 15}))
	l.HandleEvent(ctx, domain.NewEvent(domain.EventActivationActivated, "s1", now, domain.ActivationPayloadV1{Score: 65, TimeToActivate: 2 * time.Hour}))
	l.HandleEvent(ctx, domain.NewEvent(domain.EventActivationIdentified, "u1", now, domain.ActivationPayloadV1{Score: 65}))

	if got := testutil.ToFloat64(ActivationEvents.WithLabelValues("goal_set")) - evBefore; got != 1 {
		t.Errorf("event delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(Activations) - actBefore; got != 1 {
		t.Errorf("activation delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(Identifications) - idBefore; got != 1 {
		t.Errorf("identification delta = %v, want 1", got)
	}
}

func TestListener_IgnoresUnknownPayload(t *testing.T) {
	before := testutil.ToFloat64(Activations)
	Listener{}.HandleEvent(context.Background(), domain.Event{Type: domain.EventActivationActivated, Payload: "junk"})
	if testutil.ToFloat64(Activations) != before {
		t.Error("unknown payload should not change metrics")
	}
}

func TestHTTPAndHealthMetrics_Registered(t *testing.T) {
	HTTPRequests.WithLabelValues("/api/streak/{userID}", "GET", "200").Inc()
	HTTPLatency.WithLabelValues("/api/streak/{userID}").Observe(0.01)
	HealthCheckStatus.WithLabelValues("store").Set(1)
	HealthRecoveries.WithLabelValues("store").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"stride_http_requests_total",
		"stride_http_request_duration_seconds",
		"stride_health_check_status",
		"stride_health_recoveries_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestDomainMetrics_Registered(t *testing.T) {
	StreakLength.Observe(7)
	TimeToActivation.Observe(1)
	ActivationMilestones.WithLabelValues("getting_started").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"stride_streak_length_days",
		"stride_time_to_activation_hours",
		"stride_activation_milestones_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
