package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/infrastructure/persistence/models"
)

// GormImportHistoryRepository stores supplier run records.
type GormImportHistoryRepository struct {
	db *gorm.DB
}

func NewGormImportHistoryRepository(db *gorm.DB) *GormImportHistoryRepository {
	return &GormImportHistoryRepository{db: db}
}

func (r *GormImportHistoryRepository) runs(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ImportHistoryModel{})
}

func (r *GormImportHistoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*bulk.ImportHistory, error) {
	return r.first(r.runs(ctx).Where("id = ?", id))
}

// FindLatest returns the newest run of supplier.
func (r *GormImportHistoryRepository) FindLatest(ctx context.Context, supplier string) (*bulk.ImportHistory, error) {
	return r.first(r.runs(ctx).Where("supplier = ?", supplier).Order("created_at DESC"))
}

// FindProcessing returns runs that never reached a terminal state, oldest
// first. After a restart these belong to the previous process.
func (r *GormImportHistoryRepository) FindProcessing(ctx context.Context) ([]*bulk.ImportHistory, error) {
	open := []bulk.ImportStatus{bulk.ImportStatusPending, bulk.ImportStatusProcessing}
	return r.find(r.runs(ctx).Where("status IN ?", open).Order("created_at ASC"))
}

// FindAll pages through runs matching filter. Without an explicit order the
// newest come first.
func (r *GormImportHistoryRepository) FindAll(ctx context.Context, filter bulk.ImportHistoryFilter, page, pageSize int) (*bulk.ImportHistoryListResult, error) {
	matching := r.runs(ctx).Scopes(historyFilter(filter))

	result := &bulk.ImportHistoryListResult{Page: page, PageSize: pageSize}
	if err := matching.Count(&result.TotalCount).Error; err != nil {
		return nil, translateError(err)
	}

	q := matching.Order(historyOrder(filter.OrderBy, filter.OrderDir))
	if page > 0 && pageSize > 0 {
		q = q.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	items, err := r.find(q)
	if err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}

// Save upserts the run by primary key.
func (r *GormImportHistoryRepository) Save(ctx context.Context, history *bulk.ImportHistory) error {
	return translateError(r.db.WithContext(ctx).Save(models.ImportHistoryModelFromDomain(history)).Error)
}

func (r *GormImportHistoryRepository) first(q *gorm.DB) (*bulk.ImportHistory, error) {
	var row models.ImportHistoryModel
	if err := q.First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	return row.ToDomain(), nil
}

func (r *GormImportHistoryRepository) find(q *gorm.DB) ([]*bulk.ImportHistory, error) {
	var rows []models.ImportHistoryModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]*bulk.ImportHistory, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

func historyFilter(f bulk.ImportHistoryFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.Supplier != "" {
			q = q.Where("supplier = ?", f.Supplier)
		}
		if f.Status != nil {
			q = q.Where("status = ?", *f.Status)
		}
		if f.StartedFrom != nil {
			q = q.Where("started_at >= ?", *f.StartedFrom)
		}
		if f.StartedTo != nil {
			q = q.Where("started_at <= ?", *f.StartedTo)
		}
		return q
	}
}

var _ bulk.ImportHistoryRepository = (*GormImportHistoryRepository)(nil)
