package cache

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/infrastructure/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// RunLockFactory builds the supplier run lock from configuration.
type RunLockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RunLockFactoryOption configures the factory.
type RunLockFactoryOption func(*RunLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// a process local lock. Default is true.
func WithInMemoryFallback(allow bool) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunLockFactory creates a factory.
func NewRunLockFactory(cfg config.RedisConfig, opts ...RunLockFactoryOption) *RunLockFactory {
	f := &RunLockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the Redis lock when Redis is enabled and reachable, the
// in-memory lock otherwise. The closer releases the Redis connection.
func (f *RunLockFactory) Create() (importapp.RunLock, io.Closer, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory run lock")
		return NewInMemoryRunLock(), nopCloser{}, nil
	}

	client, err := NewRedisClient(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis run lock", zap.String("addr", f.redisConfig.Addr()))
		lock := NewRedisRunLock(client, "")
		return lock, lock, nil
	}
	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("redis required for run lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
		"Two instances may import the same supplier at once.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(), nopCloser{}, nil
}
