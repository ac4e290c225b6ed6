package catalog

import (
	"strings"

	"github.com/eshop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Category is a node of the shop category tree.
type Category struct {
	shared.BaseEntity
	Name     string     `gorm:"type:varchar(200);not null"`
	Slug     string     `gorm:"type:varchar(250);uniqueIndex"`
	ParentID *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (Category) TableName() string {
	return "categories"
}

// NewCategory creates a category under parent (nil for a root).
func NewCategory(name, slug string, parent *Category) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Category name cannot be empty")
	}
	c := &Category{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Slug:       strings.TrimSpace(slug),
	}
	if parent != nil {
		id := parent.ID
		c.ParentID = &id
	}
	return c, nil
}

// Brand is a manufacturer brand.
type Brand struct {
	shared.BaseEntity
	Name string `gorm:"type:varchar(200);not null"`
	Slug string `gorm:"type:varchar(250);uniqueIndex"`
}

// TableName returns the table name for GORM
func (Brand) TableName() string {
	return "brands"
}

// NewBrand creates a brand.
func NewBrand(name, slug string) (*Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_BRAND", "Brand name cannot be empty")
	}
	return &Brand{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Slug:       strings.TrimSpace(slug),
	}, nil
}
