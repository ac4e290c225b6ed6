package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/infrastructure/scheduler"
	"github.com/eshop/backend/internal/interfaces/http/dto"
)

// Runs resolves suppliers and reports which imports are in flight.
type Runs interface {
	Resolve(supplier string) (importapp.Adapter, importapp.Entry, error)
	IsRunning(supplier string) bool
	Suppliers(ctx context.Context) []importapp.SupplierStatus
}

// ImportQueue queues import jobs.
type ImportQueue interface {
	SubmitImport(supplier string, trigger bulk.Trigger) (*scheduler.Job, error)
}

// History reads recorded import runs.
type History interface {
	GetHistory(ctx context.Context, id uuid.UUID) (*bulk.ImportHistory, error)
	ListHistory(ctx context.Context, filter importapp.ListHistoryFilter, page, pageSize int) (*bulk.ImportHistoryListResult, error)
	GetErrorsCSV(ctx context.Context, id uuid.UUID) (string, string, error)
}

// ImportHandler serves manual import triggers and the run history.
type ImportHandler struct {
	BaseHandler
	runs    Runs
	queue   ImportQueue
	history History
}

// NewImportHandler creates an ImportHandler.
func NewImportHandler(runs Runs, queue ImportQueue, history History) *ImportHandler {
	return &ImportHandler{runs: runs, queue: queue, history: history}
}

// RegisterRoutes mounts the import endpoints under /imports. trigger wraps
// the manual trigger endpoint, e.g. with a rate limit.
func (h *ImportHandler) RegisterRoutes(rg *gin.RouterGroup, trigger ...gin.HandlerFunc) {
	g := rg.Group("/imports")
	g.GET("/suppliers", h.ListSuppliers)
	g.POST("/:supplier", append(trigger, h.Trigger)...)
	g.GET("/history", h.ListHistory)
	g.GET("/history/:id", h.GetHistory)
	g.GET("/history/:id/errors.csv", h.DownloadErrors)
}

// Trigger queues a manual import of one supplier.
//
//	POST /api/v1/imports/:supplier
func (h *ImportHandler) Trigger(c *gin.Context) {
	adapter, _, err := h.runs.Resolve(c.Param("supplier"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if h.runs.IsRunning(adapter.Name) {
		h.Error(c, dto.ErrCodeAlreadyRunning, "Import already running for "+adapter.Name)
		return
	}

	job, err := h.queue.SubmitImport(adapter.Name, bulk.TriggerManual)
	switch {
	case errors.Is(err, scheduler.ErrJobQueueFull):
		h.Error(c, dto.ErrCodeRateLimited, "Import queue is full, try again later")
		return
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Error(c, dto.ErrCodeUnavailable, "Import scheduler is not running")
		return
	case err != nil:
		h.HandleError(c, err)
		return
	}

	// The job belongs to a worker from here on.
	h.Accepted(c, dto.TriggerImportResponse{
		JobID:    job.ID.String(),
		Supplier: adapter.Name,
		Trigger:  string(bulk.TriggerManual),
		Status:   "queued",
	})
}

// ListSuppliers lists the configured suppliers with their last run.
//
//	GET /api/v1/imports/suppliers
func (h *ImportHandler) ListSuppliers(c *gin.Context) {
	h.Success(c, dto.NewSupplierResponses(h.runs.Suppliers(c.Request.Context())))
}

// ListHistory lists import runs, most recent first.
//
//	GET /api/v1/imports/history?supplier=&status=&started_from=&started_to=&page=&page_size=
func (h *ImportHandler) ListHistory(c *gin.Context) {
	var req dto.ImportHistoryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, dto.ErrCodeValidation, bindingMessage(err))
		return
	}
	result, err := h.history.ListHistory(c.Request.Context(), req.Filter(), req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.NewImportHistoryListItems(result.Items), result.TotalCount, result.Page, result.PageSize)
}

// GetHistory returns one run with its record errors.
//
//	GET /api/v1/imports/history/:id
func (h *ImportHandler) GetHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid history ID")
		return
	}
	history, err := h.history.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewImportHistoryResponse(history))
}

// DownloadErrors sends the record errors of a run as a CSV attachment.
//
//	GET /api/v1/imports/history/:id/errors.csv
func (h *ImportHandler) DownloadErrors(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid history ID")
		return
	}
	content, fileName, err := h.history.GetErrorsCSV(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(content))
}
