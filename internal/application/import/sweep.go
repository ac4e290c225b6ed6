package importapp

import (
	"context"
	"fmt"
	"time"

	"github.com/eshop/backend/internal/domain/catalog"
	"go.uber.org/zap"
)

// Default ages of the archive sweep.
const (
	DefaultArchiveAfter     = 90 * 24 * time.Hour
	DefaultDiscontinueAfter = 180 * 24 * time.Hour
)

// SweepResult counts the products the sweep touched.
type SweepResult struct {
	Archived     int64 `json:"archived"`
	Discontinued int64 `json:"discontinued"`
}

// ArchiveSweeper ages out products that no feed has carried for a long time.
type ArchiveSweeper struct {
	products         catalog.ProductRepository
	archiveAfter     time.Duration
	discontinueAfter time.Duration
	logger           *zap.Logger
}

// NewArchiveSweeper creates a sweeper. Zero durations use the defaults.
func NewArchiveSweeper(products catalog.ProductRepository, archiveAfter, discontinueAfter time.Duration, logger *zap.Logger) *ArchiveSweeper {
	if archiveAfter <= 0 {
		archiveAfter = DefaultArchiveAfter
	}
	if discontinueAfter <= 0 {
		discontinueAfter = DefaultDiscontinueAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSweeper{
		products:         products,
		archiveAfter:     archiveAfter,
		discontinueAfter: discontinueAfter,
		logger:           logger,
	}
}

// Sweep archives products absent longer than the archive age and
// discontinues those absent longer than the discontinue age.
func (s *ArchiveSweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	var err error

	res.Archived, err = s.products.ArchiveAbsentSince(ctx, now.Add(-s.archiveAfter))
	if err != nil {
		return res, fmt.Errorf("archive absent products: %w", err)
	}
	res.Discontinued, err = s.products.DiscontinueAbsentSince(ctx, now.Add(-s.discontinueAfter))
	if err != nil {
		return res, fmt.Errorf("discontinue absent products: %w", err)
	}

	s.logger.Info("archive sweep finished",
		zap.Int64("archived", res.Archived),
		zap.Int64("discontinued", res.Discontinued),
	)
	return res, nil
}
