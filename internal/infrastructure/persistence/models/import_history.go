package models

import (
	"time"

	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/domain/shared"
)

// ImportHistoryModel is the persistence model for the ImportHistory domain entity.
type ImportHistoryModel struct {
	shared.BaseAggregateRoot
	Supplier     string            `gorm:"type:varchar(100);not null;index"`
	Trigger      bulk.Trigger      `gorm:"type:varchar(20);not null;default:'schedule'"`
	Status       bulk.ImportStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	TotalRows    int               `gorm:"not null;default:0"`
	CreatedRows  int               `gorm:"not null;default:0"`
	UpdatedRows  int               `gorm:"not null;default:0"`
	SkippedRows  int               `gorm:"not null;default:0"`
	Republished  int               `gorm:"not null;default:0"`
	DeletedRows  int               `gorm:"not null;default:0"`
	FailedRows   int               `gorm:"not null;default:0"`
	Message      string            `gorm:"type:text"`
	ErrorDetails string            `gorm:"type:jsonb;default:'[]'"`
	StartedAt    *time.Time        `gorm:"type:timestamptz"`
	CompletedAt  *time.Time        `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (ImportHistoryModel) TableName() string {
	return "import_histories"
}

// ToDomain converts the persistence model to a domain ImportHistory entity.
func (m *ImportHistoryModel) ToDomain() *bulk.ImportHistory {
	history := &bulk.ImportHistory{
		BaseAggregateRoot: m.BaseAggregateRoot,
		Supplier:          m.Supplier,
		Trigger:           m.Trigger,
		Status:            m.Status,
		Counters: bulk.RunCounters{
			Total:       m.TotalRows,
			Created:     m.CreatedRows,
			Updated:     m.UpdatedRows,
			Skipped:     m.SkippedRows,
			Republished: m.Republished,
			Deleted:     m.DeletedRows,
			Failed:      m.FailedRows,
		},
		Message:     m.Message,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}

	// Parse error details JSON
	if err := history.SetErrorDetailsFromJSON(m.ErrorDetails); err != nil {
		history.ErrorDetails = make([]bulk.ImportErrorDetail, 0)
	}

	return history
}

// FromDomain populates the persistence model from a domain ImportHistory entity.
func (m *ImportHistoryModel) FromDomain(h *bulk.ImportHistory) {
	m.BaseAggregateRoot = h.BaseAggregateRoot
	m.Supplier = h.Supplier
	m.Trigger = h.Trigger
	m.Status = h.Status
	m.TotalRows = h.Counters.Total
	m.CreatedRows = h.Counters.Created
	m.UpdatedRows = h.Counters.Updated
	m.SkippedRows = h.Counters.Skipped
	m.Republished = h.Counters.Republished
	m.DeletedRows = h.Counters.Deleted
	m.FailedRows = h.Counters.Failed
	m.Message = h.Message
	m.StartedAt = h.StartedAt
	m.CompletedAt = h.CompletedAt

	// Serialize error details to JSON
	if errorJSON, err := h.ErrorDetailsJSON(); err == nil {
		m.ErrorDetails = errorJSON
	} else {
		m.ErrorDetails = "[]"
	}
}

// ImportHistoryModelFromDomain creates a new persistence model from a domain ImportHistory entity.
func ImportHistoryModelFromDomain(h *bulk.ImportHistory) *ImportHistoryModel {
	m := &ImportHistoryModel{}
	m.FromDomain(h)
	return m
}
