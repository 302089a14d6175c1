package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nickruden/diplom-server/pkg/telemetry"
)

var (
	// Sales
	PurchasesConfirmed *telemetry.Counter
	UnitsSold          *telemetry.Counter
	CapacityRejections *telemetry.Counter
	Refunds            *telemetry.Counter
	RefundRejections   *telemetry.Counter
	PurchaseFailures   *telemetry.Counter

	// Lifecycle
	LifecycleTransitions *telemetry.Counter
	SweepDuration        *telemetry.Histogram
	SweepFailures        *telemetry.Counter

	// Notifications
	NotificationsDelivered *telemetry.Counter
	OutboxPublished        *telemetry.Counter
	OutboxFailed           *telemetry.Counter

	initOnce sync.Once
	initErr  error
)

// Init registers every instrument once
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	counters := []struct {
		dst  **telemetry.Counter
		opts telemetry.MetricOpts
	}{
		{&PurchasesConfirmed, telemetry.MetricOpts{Name: "ticket_purchases_confirmed_total", Description: "Confirmed purchase transactions", Unit: "1"}},
		{&UnitsSold, telemetry.MetricOpts{Name: "ticket_units_sold_total", Description: "Ticket units sold", Unit: "1"}},
		{&CapacityRejections, telemetry.MetricOpts{Name: "ticket_capacity_rejections_total", Description: "Purchases rejected for lack of capacity", Unit: "1"}},
		{&Refunds, telemetry.MetricOpts{Name: "ticket_refunds_total", Description: "Refunded purchases", Unit: "1"}},
		{&RefundRejections, telemetry.MetricOpts{Name: "ticket_refund_rejections_total", Description: "Refunds rejected by policy", Unit: "1"}},
		{&PurchaseFailures, telemetry.MetricOpts{Name: "ticket_purchase_failures_total", Description: "Purchases failed by reason", Unit: "1"}},
		{&LifecycleTransitions, telemetry.MetricOpts{Name: "event_lifecycle_transitions_total", Description: "Event status transitions applied", Unit: "1"}},
		{&SweepFailures, telemetry.MetricOpts{Name: "event_lifecycle_sweep_failures_total", Description: "Events the sweep failed to evaluate", Unit: "1"}},
		{&NotificationsDelivered, telemetry.MetricOpts{Name: "notifications_delivered_total", Description: "User notifications stored", Unit: "1"}},
		{&OutboxPublished, telemetry.MetricOpts{Name: "outbox_published_total", Description: "Outbox messages relayed", Unit: "1"}},
		{&OutboxFailed, telemetry.MetricOpts{Name: "outbox_failed_total", Description: "Outbox relay attempts that failed", Unit: "1"}},
	}
	for _, c := range counters {
		counter, err := telemetry.NewCounter(c.opts)
		if err != nil {
			return err
		}
		*c.dst = counter
	}

	var err error
	SweepDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "event_lifecycle_sweep_duration_seconds",
		Description: "Duration of one lifecycle sweep",
		Unit:        "s",
	}, []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60})
	return err
}

// RecordPurchase records a confirmed purchase
func RecordPurchase(ctx context.Context, eventID int64, units int) {
	PurchasesConfirmed.Inc(ctx, attribute.Int64("event_id", eventID))
	UnitsSold.Add(ctx, int64(units), attribute.Int64("event_id", eventID))
}

// RecordPurchaseFailure records a rejected purchase by error code
func RecordPurchaseFailure(ctx context.Context, reason string) {
	if reason == "CAPACITY_EXCEEDED" {
		CapacityRejections.Inc(ctx)
	}
	PurchaseFailures.Inc(ctx, attribute.String("reason", reason))
}

// RecordRefund records refunded purchases
func RecordRefund(ctx context.Context, eventID int64, count int) {
	Refunds.Add(ctx, int64(count), attribute.Int64("event_id", eventID))
}

// RecordRefundRejection records a refund blocked by policy
func RecordRefundRejection(ctx context.Context, reason string) {
	RefundRejections.Inc(ctx, attribute.String("reason", reason))
}

// RecordTransition records one lifecycle transition
func RecordTransition(ctx context.Context, from, to, source string) {
	LifecycleTransitions.Inc(ctx,
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.String("source", source),
	)
}

// RecordSweep records a finished sweep
func RecordSweep(ctx context.Context, durationSeconds float64, failed int) {
	SweepDuration.Record(ctx, durationSeconds)
	if failed > 0 {
		SweepFailures.Add(ctx, int64(failed))
	}
}

// RecordNotifications records stored notifications by change kind
func RecordNotifications(ctx context.Context, kind string, count int) {
	NotificationsDelivered.Add(ctx, int64(count), attribute.String("kind", kind))
}

// RecordOutbox records one relay batch
func RecordOutbox(ctx context.Context, published, failed int) {
	if published > 0 {
		OutboxPublished.Add(ctx, int64(published))
	}
	if failed > 0 {
		OutboxFailed.Add(ctx, int64(failed))
	}
}
