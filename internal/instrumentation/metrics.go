package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrSourceType = "source_type"
	attrAction     = "action"
	attrOperation  = "operation"
	attrResult     = "result"
)

// Result values for consistent labeling.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics provides methods for recording observability metrics. The zero
// value (and a nil pointer) is a no-op recorder, so callers never need to
// guard metric calls.
type Metrics struct {
	syncOperationsTotal metric.Int64Counter
	syncDuration        metric.Float64Histogram
	fullSyncTotal       metric.Int64Counter
	fullSyncErrors      metric.Int64Counter
	apiOperationsTotal  metric.Int64Counter
	tokenRefreshTotal   metric.Int64Counter
	pendingSyncs        metric.Int64UpDownCounter
}

// NewMetrics creates a Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.syncOperationsTotal, err = meter.Int64Counter(
		"calendar_sync_operations_total",
		metric.WithDescription("Total number of per-entity calendar sync operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_sync_operations_total counter: %w", err)
	}

	m.syncDuration, err = meter.Float64Histogram(
		"calendar_sync_duration_seconds",
		metric.WithDescription("Per-entity calendar sync duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_sync_duration_seconds histogram: %w", err)
	}

	m.fullSyncTotal, err = meter.Int64Counter(
		"calendar_full_sync_total",
		metric.WithDescription("Total number of full reconciliation passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_full_sync_total counter: %w", err)
	}

	m.fullSyncErrors, err = meter.Int64Counter(
		"calendar_full_sync_item_errors_total",
		metric.WithDescription("Total number of per-item failures during full reconciliation"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_full_sync_item_errors_total counter: %w", err)
	}

	m.apiOperationsTotal, err = meter.Int64Counter(
		"calendar_api_operations_total",
		metric.WithDescription("Total number of external calendar API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operations_total counter: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.pendingSyncs, err = meter.Int64UpDownCounter(
		"calendar_pending_syncs",
		metric.WithDescription("Number of sync requests waiting in the debounce window"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_pending_syncs gauge: %w", err)
	}

	return m, nil
}

// RecordSync records a per-entity sync operation with its duration.
func (m *Metrics) RecordSync(ctx context.Context, sourceType, action, result string, duration time.Duration) {
	if m == nil || m.syncOperationsTotal == nil {
		return
	}
	m.syncOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSourceType, sourceType),
		attribute.String(attrAction, action),
		attribute.String(attrResult, result),
	))
	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrSourceType, sourceType),
	))
}

// RecordFullSync records a full reconciliation pass and its per-item errors.
func (m *Metrics) RecordFullSync(ctx context.Context, result string, itemErrors int) {
	if m == nil || m.fullSyncTotal == nil {
		return
	}
	m.fullSyncTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
	if itemErrors > 0 {
		m.fullSyncErrors.Add(ctx, int64(itemErrors))
	}
}

// RecordAPIOperation records an external calendar API call.
func (m *Metrics) RecordAPIOperation(ctx context.Context, operation, result string) {
	if m == nil || m.apiOperationsTotal == nil {
		return
	}
	m.apiOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrResult, result),
	))
}

// RecordTokenRefresh records an OAuth token refresh attempt.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.tokenRefreshTotal == nil {
		return
	}
	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// AddPending adjusts the pending-sync gauge by delta.
func (m *Metrics) AddPending(ctx context.Context, delta int64) {
	if m == nil || m.pendingSyncs == nil {
		return
	}
	m.pendingSyncs.Add(ctx, delta)
}
