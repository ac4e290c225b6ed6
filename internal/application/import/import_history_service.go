package importapp

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrNoRecordErrors is returned when an errors export is asked of a run
// that recorded none.
var ErrNoRecordErrors = shared.NewDomainError("NO_ERRORS", "no errors to export")

// ImportHistoryService records supplier runs and serves their history.
type ImportHistoryService struct {
	historyRepo bulk.ImportHistoryRepository
}

// NewImportHistoryService creates a new ImportHistoryService
func NewImportHistoryService(historyRepo bulk.ImportHistoryRepository) *ImportHistoryService {
	return &ImportHistoryService{
		historyRepo: historyRepo,
	}
}

// Start creates a run record already in processing state.
func (s *ImportHistoryService) Start(ctx context.Context, supplier string, trigger bulk.Trigger) (*bulk.ImportHistory, error) {
	history, err := bulk.NewImportHistory(supplier, trigger)
	if err != nil {
		return nil, err
	}
	if err := history.StartProcessing(); err != nil {
		return nil, err
	}
	if err := s.historyRepo.Save(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to save import history: %w", err)
	}
	return history, nil
}

// Finish stores the outcome of a run.
func (s *ImportHistoryService) Finish(ctx context.Context, history *bulk.ImportHistory, result Result) error {
	var err error
	if result.OK() {
		err = history.Complete(result.Summary.Counters, result.Summary.Details())
	} else {
		err = history.Fail(result.Error, result.Summary.Counters, result.Summary.Details())
	}
	if err != nil {
		return err
	}
	return s.historyRepo.Save(ctx, history)
}

// RecoverInterrupted fails the runs a previous process left in processing.
// It returns how many were closed.
func (s *ImportHistoryService) RecoverInterrupted(ctx context.Context) (int, error) {
	stuck, err := s.historyRepo.FindProcessing(ctx)
	if err != nil {
		return 0, err
	}
	for _, h := range stuck {
		if err := h.Fail("interrupted by shutdown", h.Counters, h.ErrorDetails); err != nil {
			return 0, err
		}
		if err := s.historyRepo.Save(ctx, h); err != nil {
			return 0, fmt.Errorf("failed to save import history: %w", err)
		}
	}
	return len(stuck), nil
}

// GetHistory retrieves a specific run by ID
func (s *ImportHistoryService) GetHistory(ctx context.Context, historyID uuid.UUID) (*bulk.ImportHistory, error) {
	return s.historyRepo.FindByID(ctx, historyID)
}

// Latest returns the most recent run of supplier.
func (s *ImportHistoryService) Latest(ctx context.Context, supplier string) (*bulk.ImportHistory, error) {
	return s.historyRepo.FindLatest(ctx, strings.TrimSpace(supplier))
}

// ListHistoryFilter defines the filter options for listing runs
type ListHistoryFilter struct {
	Supplier    string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
	OrderBy     string
	OrderDir    string
}

// ListHistory retrieves runs with pagination and filtering. Unknown statuses
// are ignored.
func (s *ImportHistoryService) ListHistory(ctx context.Context, filter ListHistoryFilter, page, pageSize int) (*bulk.ImportHistoryListResult, error) {
	repoFilter := bulk.ImportHistoryFilter{
		Supplier:    strings.TrimSpace(filter.Supplier),
		StartedFrom: filter.StartedFrom,
		StartedTo:   filter.StartedTo,
		OrderBy:     filter.OrderBy,
		OrderDir:    filter.OrderDir,
	}
	if filter.Status != "" {
		status := bulk.ImportStatus(filter.Status)
		if status.IsValid() {
			repoFilter.Status = &status
		}
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.historyRepo.FindAll(ctx, repoFilter, page, pageSize)
}

// GetErrorsCSV renders the record errors of a run as CSV and returns the
// content with a download file name.
func (s *ImportHistoryService) GetErrorsCSV(ctx context.Context, historyID uuid.UUID) (string, string, error) {
	history, err := s.historyRepo.FindByID(ctx, historyID)
	if err != nil {
		return "", "", err
	}
	if len(history.ErrorDetails) == 0 {
		return "", "", ErrNoRecordErrors
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Record", "Error Code", "Error Message"})
	for _, e := range history.ErrorDetails {
		_ = w.Write([]string{e.Record, e.Code, e.Message})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", "", err
	}

	fileName := fmt.Sprintf("import_errors_%s_%s.csv", history.Supplier, history.ID.String()[:8])
	return buf.String(), fileName, nil
}
