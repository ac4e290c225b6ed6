package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQuery = 200 * time.Millisecond

// DBOptions selects the database instrumentation.
type DBOptions struct {
	// Tracing adds a span per statement. Query variables are never recorded.
	Tracing bool
	// Meter enables query and pool metrics when set.
	Meter metric.Meter
	// SlowQuery is the latency above which statements are counted and
	// logged as slow. Zero means 200ms.
	SlowQuery time.Duration
}

// InstrumentDB registers tracing and metrics on db.
func InstrumentDB(db *gorm.DB, opts DBOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tracing {
		if err := db.Use(otelgorm.NewPlugin(
			otelgorm.WithDBName("eshop"),
			otelgorm.WithoutQueryVariables(),
		)); err != nil {
			return err
		}
	}
	if opts.Meter != nil {
		m, err := newQueryMetrics(opts.Meter, opts.SlowQuery, logger)
		if err != nil {
			return err
		}
		if err := db.Use(m); err != nil {
			return err
		}
	}
	logger.Debug("database instrumented", zap.Bool("tracing", opts.Tracing), zap.Bool("metrics", opts.Meter != nil))
	return nil
}

type startKey struct{}

// queryMetrics is a gorm plugin timing every statement.
type queryMetrics struct {
	meter     metric.Meter
	slow      time.Duration
	logger    *zap.Logger
	total     metric.Int64Counter
	slowTotal metric.Int64Counter
	duration  metric.Float64Histogram
}

func newQueryMetrics(meter metric.Meter, slow time.Duration, logger *zap.Logger) (*queryMetrics, error) {
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	m := &queryMetrics{meter: meter, slow: slow, logger: logger}
	var err error
	if m.total, err = meter.Int64Counter("db_query_total",
		metric.WithDescription("Database statements by operation, table and outcome"),
		metric.WithUnit("{query}")); err != nil {
		return nil, err
	}
	if m.slowTotal, err = meter.Int64Counter("db_slow_query_total",
		metric.WithDescription("Database statements slower than the slow query threshold"),
		metric.WithUnit("{query}")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("db_query_duration_seconds",
		metric.WithDescription("Database statement latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5)); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *queryMetrics) Name() string { return "eshop:query_metrics" }

func (m *queryMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	errs := []error{
		cb.Create().Before("gorm:create").Register("metrics:before_create", m.before),
		cb.Create().After("gorm:create").Register("metrics:after_create", m.after("INSERT")),
		cb.Query().Before("gorm:query").Register("metrics:before_query", m.before),
		cb.Query().After("gorm:query").Register("metrics:after_query", m.after("SELECT")),
		cb.Update().Before("gorm:update").Register("metrics:before_update", m.before),
		cb.Update().After("gorm:update").Register("metrics:after_update", m.after("UPDATE")),
		cb.Delete().Before("gorm:delete").Register("metrics:before_delete", m.before),
		cb.Delete().After("gorm:delete").Register("metrics:after_delete", m.after("DELETE")),
		cb.Row().Before("gorm:row").Register("metrics:before_row", m.before),
		cb.Row().After("gorm:row").Register("metrics:after_row", m.after("")),
		cb.Raw().Before("gorm:raw").Register("metrics:before_raw", m.before),
		cb.Raw().After("gorm:raw").Register("metrics:after_raw", m.after("")),
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return m.observePool(db)
}

// observePool reports the connection pool state on every collection.
func (m *queryMetrics) observePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	conns, err := m.meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	state := attribute.Key("state")
	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := sqlDB.Stats()
		o.ObserveInt64(conns, int64(s.InUse), metric.WithAttributes(state.String("in_use")))
		o.ObserveInt64(conns, int64(s.Idle), metric.WithAttributes(state.String("idle")))
		o.ObserveInt64(conns, int64(s.MaxOpenConnections), metric.WithAttributes(state.String("max")))
		return nil
	}, conns)
	return err
}

func (m *queryMetrics) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, startKey{}, time.Now())
}

func (m *queryMetrics) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		start, ok := ctx.Value(startKey{}).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		op := operation
		if op == "" {
			op = statementKind(db.Statement.SQL.String())
		}
		status := "ok"
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("table", db.Statement.Table),
			attribute.String("status", status),
		)
		m.total.Add(ctx, 1, attrs)
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
		if elapsed >= m.slow {
			m.slowTotal.Add(ctx, 1, attrs)
			m.logger.Warn("slow query",
				zap.String("operation", op),
				zap.String("table", db.Statement.Table),
				zap.Duration("elapsed", elapsed),
			)
		}
	}
}

func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch kw := strings.ToUpper(fields[0]); kw {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return kw
	case "WITH":
		return "SELECT"
	default:
		return "OTHER"
	}
}
