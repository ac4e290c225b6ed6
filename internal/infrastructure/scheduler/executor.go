package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/domain/shared"
)

// ImportRunner starts one supplier import.
type ImportRunner interface {
	Run(ctx context.Context, supplier string, trigger bulk.Trigger) (importapp.Result, error)
}

// Sweeper archives products that left every feed.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (importapp.SweepResult, error)
}

// ImportExecutor runs import and sweep jobs.
type ImportExecutor struct {
	runner  ImportRunner
	sweeper Sweeper
	logger  *zap.Logger
}

// NewImportExecutor creates the executor. sweeper may be nil.
func NewImportExecutor(runner ImportRunner, sweeper Sweeper, logger *zap.Logger) *ImportExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportExecutor{runner: runner, sweeper: sweeper, logger: logger}
}

// Execute implements JobExecutor. Only failures worth retrying are
// returned: a run already in progress or an unknown supplier is logged.
func (e *ImportExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Kind {
	case JobKindImport:
		res, err := e.runner.Run(ctx, job.Supplier, job.Trigger)
		switch {
		case errors.Is(err, shared.ErrAlreadyRunning):
			e.logger.Info("import skipped, already running", zap.String("supplier", job.Supplier))
			return nil
		case errors.Is(err, shared.ErrNotFound):
			e.logger.Warn("import skipped", zap.String("supplier", job.Supplier), zap.Error(err))
			return nil
		case err != nil:
			return err
		case !res.OK():
			return fmt.Errorf("import %s failed: %s", job.Supplier, res.Error)
		}
		return nil
	case JobKindSweep:
		if e.sweeper == nil {
			return nil
		}
		_, err := e.sweeper.Sweep(ctx, time.Now())
		return err
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
