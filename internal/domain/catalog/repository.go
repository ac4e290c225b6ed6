package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProductRepository is the product store used by the import pipeline.
// Implementations wrap deadlocks and lock timeouts in shared.ErrLockContention.
type ProductRepository interface {
	// FindPage returns products ordered by id, without long text columns.
	FindPage(ctx context.Context, offset, limit int) ([]Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	Create(ctx context.Context, product *Product) error
	// Update writes the import-managed columns of product.
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
	// ArchiveAbsentSince flags products absent from every feed since before cutoff.
	ArchiveAbsentSince(ctx context.Context, cutoff time.Time) (int64, error)
	// DiscontinueAbsentSince marks products absent since before cutoff as Discontinued.
	DiscontinueAbsentSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// CategoryRepository reads the category tree.
type CategoryRepository interface {
	FindAll(ctx context.Context) ([]Category, error)
	Save(ctx context.Context, category *Category) error
}

// BrandRepository reads brands.
type BrandRepository interface {
	FindAll(ctx context.Context) ([]Brand, error)
	Save(ctx context.Context, brand *Brand) error
}
