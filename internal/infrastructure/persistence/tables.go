package persistence

import (
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/persistence/models"
)

// Tables lists the models of every table the importer owns.
func Tables() []any {
	return []any{
		&catalog.Category{},
		&catalog.Brand{},
		&catalog.Product{},
		&models.ImportHistoryModel{},
	}
}
