package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowSQL   = 500 * time.Millisecond
	defaultMaxSQLLen = 2048
)

// GormLogger routes GORM output to zap. Statements carry the supplier, run
// and request of their context, so a slow batch can be traced back to the
// import that issued it.
type GormLogger struct {
	logger    *zap.Logger
	level     gormlogger.LogLevel
	slowSQL   time.Duration
	maxSQLLen int
	retryable func(error) bool
}

// GormLoggerOption configures a GormLogger.
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the latency above which statements are logged as
// slow. Zero disables slow statement logging.
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowSQL = d }
}

// WithMaxSQLLength truncates logged statements. Multi-row inserts of an
// import batch are otherwise several kilobytes each.
func WithMaxSQLLength(n int) GormLoggerOption {
	return func(l *GormLogger) { l.maxSQLLen = n }
}

// WithRetryableErrors downgrades errors matched by fn to warnings. The
// importer retries writes that lost a lock, so they are not failures yet.
func WithRetryableErrors(fn func(error) bool) GormLoggerOption {
	return func(l *GormLogger) { l.retryable = fn }
}

// NewGormLogger creates a GORM logger writing to zapLogger.
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	l := &GormLogger{
		logger:    zapLogger.Named("gorm"),
		level:     level,
		slowSQL:   defaultSlowSQL,
		maxSQLLen: defaultMaxSQLLen,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode implements gormlogger.Interface.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...), contextFields(ctx)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...), contextFields(ctx)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error(fmt.Sprintf(msg, data...), contextFields(ctx)...)
	}
}

// Trace logs one executed statement.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error:
		if errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		fields := append(l.statement(ctx, elapsed, fc), zap.Error(err))
		if l.retryable != nil && l.retryable(err) {
			l.logger.Warn("sql lock contention", fields...)
			return
		}
		l.logger.Error("sql failed", fields...)

	case l.slowSQL > 0 && elapsed > l.slowSQL && l.level >= gormlogger.Warn:
		l.logger.Warn("slow sql", append(l.statement(ctx, elapsed, fc), zap.Duration("threshold", l.slowSQL))...)

	case l.level >= gormlogger.Info:
		l.logger.Debug("sql", l.statement(ctx, elapsed, fc)...)
	}
}

func (l *GormLogger) statement(ctx context.Context, elapsed time.Duration, fc func() (string, int64)) []zap.Field {
	sql, rows := fc()
	if l.maxSQLLen > 0 && len(sql) > l.maxSQLLen {
		sql = fmt.Sprintf("%s... (%d bytes)", sql[:l.maxSQLLen], len(sql))
	}
	return append(contextFields(ctx),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
}

// contextFields returns the supplier, run and request ids found in ctx.
func contextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if v := GetSupplier(ctx); v != "" {
		fields = append(fields, zap.String("supplier", v))
	}
	if v := GetRunID(ctx); v != "" {
		fields = append(fields, zap.String("run_id", v))
	}
	if v := GetRequestID(ctx); v != "" {
		fields = append(fields, zap.String("request_id", v))
	}
	return fields
}

// MapGormLogLevel maps the application log level to GORM's. Debug is the
// only level that logs every statement.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch ParseLevel(level) {
	case zap.DebugLevel:
		return gormlogger.Info
	case zap.ErrorLevel, zap.DPanicLevel, zap.PanicLevel, zap.FatalLevel:
		return gormlogger.Error
	default:
		if level == "silent" {
			return gormlogger.Silent
		}
		return gormlogger.Warn
	}
}
