package syncer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/julianstephens/quitlog/internal/models"
)

const instrumentationName = "github.com/julianstephens/quitlog/internal/syncer"

// syncMetrics holds the sync counters. Unless WithMeterProvider is given
// they report through the global provider, a no-op until the host installs one.
type syncMetrics struct {
	writes   metric.Int64Counter
	enqueued metric.Int64Counter
	replays  metric.Int64Counter
	drains   metric.Int64Counter
}

func newSyncMetrics(mp metric.MeterProvider) *syncMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	m := &syncMetrics{}
	var err error

	if m.writes, err = meter.Int64Counter(
		"quitlog.sync.writes",
		metric.WithDescription("Dual writes by store and remote outcome"),
		metric.WithUnit("{writes}"),
	); err != nil {
		otel.Handle(err)
	}
	if m.enqueued, err = meter.Int64Counter(
		"quitlog.sync.enqueued",
		metric.WithDescription("Operations deferred to the sync queue"),
		metric.WithUnit("{items}"),
	); err != nil {
		otel.Handle(err)
	}
	if m.replays, err = meter.Int64Counter(
		"quitlog.sync.replays",
		metric.WithDescription("Queue item replay attempts by outcome"),
		metric.WithUnit("{items}"),
	); err != nil {
		otel.Handle(err)
	}
	if m.drains, err = meter.Int64Counter(
		"quitlog.sync.drains",
		metric.WithDescription("Completed drain passes"),
		metric.WithUnit("{drains}"),
	); err != nil {
		otel.Handle(err)
	}
	return m
}

func (m *syncMetrics) recordWrite(ctx context.Context, store models.StoreName, op models.Operation, synced bool) {
	if m.writes == nil {
		return
	}
	m.writes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", string(store)),
		attribute.String("operation", string(op)),
		attribute.Bool("synced", synced),
	))
}

func (m *syncMetrics) recordEnqueue(ctx context.Context, store models.StoreName, reason string) {
	if m.enqueued == nil {
		return
	}
	m.enqueued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", string(store)),
		attribute.String("reason", reason),
	))
}

func (m *syncMetrics) recordReplay(ctx context.Context, store models.StoreName, outcome string) {
	if m.replays == nil {
		return
	}
	m.replays.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", string(store)),
		attribute.String("outcome", outcome),
	))
}

func (m *syncMetrics) recordDrain(ctx context.Context, report DrainReport) {
	if m.drains == nil {
		return
	}
	m.drains.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("replayed", report.Replayed),
		attribute.Int("failed", report.Failed),
		attribute.Bool("interrupted", report.Interrupted),
	))
}
