package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/eshop/backend/internal/domain/bulk"
)

// ImportMetrics counts import runs and their product outcomes per supplier.
type ImportMetrics struct {
	runs     metric.Int64Counter
	products metric.Int64Counter
	duration metric.Float64Histogram
}

// NewImportMetrics creates the import instruments on meter.
func NewImportMetrics(meter metric.Meter) (*ImportMetrics, error) {
	m := &ImportMetrics{}
	var err error
	if m.runs, err = meter.Int64Counter("import_runs_total",
		metric.WithDescription("Finished import runs by supplier and result"),
		metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if m.products, err = meter.Int64Counter("import_products_total",
		metric.WithDescription("Products handled by import runs by outcome"),
		metric.WithUnit("{product}")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("import_run_duration_seconds",
		metric.WithDescription("Import run duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600)); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun records one finished run.
func (m *ImportMetrics) RecordRun(ctx context.Context, supplier string, ok bool, c bulk.RunCounters, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	sup := attribute.String("supplier", supplier)
	m.runs.Add(ctx, 1, metric.WithAttributes(sup, attribute.String("result", result)))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(sup, attribute.String("result", result)))

	for _, o := range []struct {
		outcome string
		n       int
	}{
		{"created", c.Created},
		{"updated", c.Updated},
		{"skipped", c.Skipped},
		{"republished", c.Republished},
		{"deleted", c.Deleted},
		{"failed", c.Failed},
	} {
		if o.n > 0 {
			m.products.Add(ctx, int64(o.n), metric.WithAttributes(sup, attribute.String("outcome", o.outcome)))
		}
	}
}
