package bulk

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ImportHistoryFilter defines the filters for querying run history
type ImportHistoryFilter struct {
	Supplier    string
	Status      *ImportStatus
	StartedFrom *time.Time
	StartedTo   *time.Time
	// OrderBy and OrderDir select the sort. Unknown fields fall back to
	// the most recent first.
	OrderBy  string
	OrderDir string
}

// ImportHistoryListResult represents a paginated list of runs
type ImportHistoryListResult struct {
	Items      []*ImportHistory
	TotalCount int64
	Page       int
	PageSize   int
}

// ImportHistoryRepository defines the interface for run history persistence
type ImportHistoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ImportHistory, error)
	FindAll(ctx context.Context, filter ImportHistoryFilter, page, pageSize int) (*ImportHistoryListResult, error)
	// FindLatest returns the most recent run of supplier.
	FindLatest(ctx context.Context, supplier string) (*ImportHistory, error)
	// FindProcessing returns runs left processing, e.g. by a crashed process.
	FindProcessing(ctx context.Context) ([]*ImportHistory, error)
	Save(ctx context.Context, history *ImportHistory) error
}
