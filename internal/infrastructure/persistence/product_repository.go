package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/domain/shared"
)

// productPageColumns are the columns the import cache loads. The long text
// columns stay in the database.
var productPageColumns = []string{
	"id", "created_at", "updated_at", "version",
	"name", "slug", "mpn", "barcode", "model",
	"wholesale", "retail_price", "recycle_tax", "in_offer",
	"weight", "length", "width", "height",
	"characteristics", "images", "category_id", "brand_id",
	"status", "inventory", "supplier_info", "related_imports",
	"published", "deleted_at", "is_archived",
}

// productImportColumns are the columns an import run owns. Descriptions and
// own inventory are edited in the shop once a product exists.
var productImportColumns = []string{
	"updated_at", "version",
	"name", "slug", "mpn", "barcode", "model",
	"wholesale", "retail_price", "recycle_tax", "in_offer",
	"weight", "length", "width", "height",
	"characteristics", "images", "category_id", "brand_id",
	"status", "supplier_info", "related_imports",
	"published", "deleted_at", "is_archived",
}

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindPage returns one page of products ordered by id.
func (r *GormProductRepository) FindPage(ctx context.Context, offset, limit int) ([]catalog.Product, error) {
	var products []catalog.Product
	err := r.db.WithContext(ctx).
		Select(productPageColumns).
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, translateError(err)
	}
	return products, nil
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

// Create inserts a new product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	return translateError(r.db.WithContext(ctx).Create(product).Error)
}

// Update writes the import-managed columns of product if the stored row is
// still at product.Version, then bumps the version on both. A stale copy
// gets shared.ErrVersionConflict.
func (r *GormProductRepository) Update(ctx context.Context, product *catalog.Product) error {
	read := product.Version
	product.Version = read + 1
	product.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(product).
		Where("version = ?", read).
		Select(productImportColumns).
		Updates(product)
	if result.Error == nil && result.RowsAffected == 1 {
		return nil
	}
	product.Version = read
	if result.Error != nil {
		return translateError(result.Error)
	}

	var stored int64
	if err := r.db.WithContext(ctx).Model(&catalog.Product{}).Where("id = ?", product.ID).Count(&stored).Error; err != nil {
		return translateError(err)
	}
	if stored == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrVersionConflict
}

// Delete removes a product row
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&catalog.Product{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count returns the number of products
func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&catalog.Product{}).Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// ArchiveAbsentSince flags products absent from every feed since before cutoff.
func (r *GormProductRepository) ArchiveAbsentSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("deleted_at IS NOT NULL AND deleted_at < ? AND is_archived = ?", cutoff, false).
		Updates(map[string]any{"is_archived": true, "updated_at": time.Now()})
	if result.Error != nil {
		return 0, translateError(result.Error)
	}
	return result.RowsAffected, nil
}

// DiscontinueAbsentSince marks products absent since before cutoff as Discontinued.
func (r *GormProductRepository) DiscontinueAbsentSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("deleted_at IS NOT NULL AND deleted_at < ? AND status <> ?", cutoff, catalog.StatusDiscontinued).
		Updates(map[string]any{"status": catalog.StatusDiscontinued, "updated_at": time.Now()})
	if result.Error != nil {
		return 0, translateError(result.Error)
	}
	return result.RowsAffected, nil
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
