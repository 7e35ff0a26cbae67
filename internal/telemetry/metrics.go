package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the pipeline's instruments.
type Metrics struct {
	runs          metric.Int64Counter
	runDuration   metric.Float64Histogram
	chunks        metric.Int64Histogram
	artifactBytes metric.Int64Histogram
	fetchAttempts metric.Int64Counter
	workspaces    metric.Int64UpDownCounter
	publishes     metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.runs, err = meter.Int64Counter("textcast_runs",
		metric.WithDescription("Pipeline runs by kind and status")); err != nil {
		return nil, err
	}
	if m.runDuration, err = meter.Float64Histogram("textcast_run_duration",
		metric.WithDescription("Pipeline run duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.chunks, err = meter.Int64Histogram("textcast_chunks",
		metric.WithDescription("Chunks per speech run")); err != nil {
		return nil, err
	}
	if m.artifactBytes, err = meter.Int64Histogram("textcast_artifact_bytes",
		metric.WithDescription("Size of produced artifacts"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.fetchAttempts, err = meter.Int64Counter("textcast_fetch_attempts",
		metric.WithDescription("Chunk fetch attempts by final job state")); err != nil {
		return nil, err
	}
	if m.workspaces, err = meter.Int64UpDownCounter("textcast_workspaces_active",
		metric.WithDescription("Workspaces currently on disk")); err != nil {
		return nil, err
	}
	if m.publishes, err = meter.Int64Counter("textcast_publishes",
		metric.WithDescription("Artifact publish jobs by outcome")); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordRun records one finished pipeline run. bytes is zero on failure.
func (m *Metrics) RecordRun(ctx context.Context, kind, status string, d time.Duration, bytes int) {
	attrs := metric.WithAttributes(attribute.String("kind", kind), attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, d.Seconds(), attrs)
	if bytes > 0 {
		m.artifactBytes.Record(ctx, int64(bytes), metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// RecordChunks records how many chunks a speech run was split into.
func (m *Metrics) RecordChunks(ctx context.Context, n int) {
	m.chunks.Record(ctx, int64(n))
}

// RecordFetch records the attempts spent on one chunk and its final state.
func (m *Metrics) RecordFetch(ctx context.Context, state string, attempts int) {
	m.fetchAttempts.Add(ctx, int64(attempts), metric.WithAttributes(attribute.String("state", state)))
}

// WorkspaceOpened and WorkspaceClosed track live workspaces.
func (m *Metrics) WorkspaceOpened(ctx context.Context) { m.workspaces.Add(ctx, 1) }

// WorkspaceClosed decrements the live workspace count.
func (m *Metrics) WorkspaceClosed(ctx context.Context) { m.workspaces.Add(ctx, -1) }

// RecordPublish records the outcome of an artifact publish job.
func (m *Metrics) RecordPublish(ctx context.Context, outcome string) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
