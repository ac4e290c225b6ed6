package dto

import (
	"time"

	"github.com/google/uuid"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/bulk"
)

// TriggerImportResponse acknowledges a queued manual import.
type TriggerImportResponse struct {
	JobID    string `json:"job_id"`
	Supplier string `json:"supplier"`
	Trigger  string `json:"trigger"`
	Status   string `json:"status"`
}

// SupplierResponse is the configuration and last run of a supplier.
type SupplierResponse struct {
	Name     string                 `json:"name"`
	Active   bool                   `json:"active"`
	Schedule []string               `json:"schedule"`
	Running  bool                   `json:"running"`
	LastRun  *ImportHistoryResponse `json:"last_run,omitempty"`
}

// NewSupplierResponses converts supplier statuses.
func NewSupplierResponses(list []importapp.SupplierStatus) []SupplierResponse {
	out := make([]SupplierResponse, 0, len(list))
	for _, s := range list {
		r := SupplierResponse{
			Name:     s.Name,
			Active:   s.Active,
			Schedule: s.Schedule,
			Running:  s.Running,
		}
		if r.Schedule == nil {
			r.Schedule = []string{}
		}
		if s.LastRun != nil {
			last := NewImportHistoryResponse(s.LastRun)
			last.ErrorDetails = nil
			r.LastRun = &last
		}
		out = append(out, r)
	}
	return out
}

// ImportHistoryListRequest holds the list query parameters.
type ImportHistoryListRequest struct {
	Supplier    string `form:"supplier"`
	Status      string `form:"status" binding:"omitempty,oneof=pending processing completed failed"`
	StartedFrom string `form:"started_from" binding:"omitempty,datetime=2006-01-02"`
	StartedTo   string `form:"started_to" binding:"omitempty,datetime=2006-01-02"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by" binding:"omitempty,oneof=started_at completed_at supplier status created failed"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// Filter converts the request to the service filter. StartedTo covers the
// whole day.
func (r ImportHistoryListRequest) Filter() importapp.ListHistoryFilter {
	f := importapp.ListHistoryFilter{
		Supplier: r.Supplier,
		Status:   r.Status,
		OrderBy:  r.OrderBy,
		OrderDir: r.OrderDir,
	}
	if t, err := time.Parse(time.DateOnly, r.StartedFrom); err == nil {
		f.StartedFrom = &t
	}
	if t, err := time.Parse(time.DateOnly, r.StartedTo); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.StartedTo = &end
	}
	return f
}

// ImportHistoryResponse is one import run.
type ImportHistoryResponse struct {
	ID           uuid.UUID                `json:"id"`
	Supplier     string                   `json:"supplier"`
	Trigger      string                   `json:"trigger"`
	Status       string                   `json:"status"`
	Counters     bulk.RunCounters         `json:"counters"`
	Message      string                   `json:"message,omitempty"`
	ErrorCount   int                      `json:"error_count"`
	ErrorDetails []bulk.ImportErrorDetail `json:"error_details,omitempty"`
	StartedAt    *time.Time               `json:"started_at,omitempty"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
	DurationSec  float64                  `json:"duration_seconds,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
}

// NewImportHistoryResponse converts a run.
func NewImportHistoryResponse(h *bulk.ImportHistory) ImportHistoryResponse {
	r := ImportHistoryResponse{
		ID:           h.ID,
		Supplier:     h.Supplier,
		Trigger:      string(h.Trigger),
		Status:       string(h.Status),
		Counters:     h.Counters,
		Message:      h.Message,
		ErrorCount:   len(h.ErrorDetails),
		ErrorDetails: h.ErrorDetails,
		StartedAt:    h.StartedAt,
		CompletedAt:  h.CompletedAt,
		CreatedAt:    h.CreatedAt,
	}
	if h.StartedAt != nil && h.CompletedAt != nil {
		r.DurationSec = h.CompletedAt.Sub(*h.StartedAt).Seconds()
	}
	return r
}

// NewImportHistoryListItems converts a page of runs without their error details.
func NewImportHistoryListItems(items []*bulk.ImportHistory) []ImportHistoryResponse {
	out := make([]ImportHistoryResponse, 0, len(items))
	for _, h := range items {
		r := NewImportHistoryResponse(h)
		r.ErrorDetails = nil
		out = append(out, r)
	}
	return out
}
