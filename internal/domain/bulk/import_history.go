package bulk

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/eshop/backend/internal/domain/shared"
)

// ImportStatus is where a run is in pending -> processing -> completed|failed.
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

var importStatuses = []ImportStatus{
	ImportStatusPending, ImportStatusProcessing, ImportStatusCompleted, ImportStatusFailed,
}

func (s ImportStatus) IsValid() bool {
	return slices.Contains(importStatuses, s)
}

// IsTerminal reports whether a run in s is over.
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// Trigger tells what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

type RunCounters struct {
	Total       int `json:"total"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Republished int `json:"republished"`
	Deleted     int `json:"deleted"`
	Failed      int `json:"failed"`
}

// ImportErrorDetail is one record-level failure of a run.
type ImportErrorDetail struct {
	Record  string `json:"record"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportHistory is the persisted summary of one supplier import run.
type ImportHistory struct {
	shared.BaseAggregateRoot
	Supplier     string              `json:"supplier"`
	Trigger      Trigger             `json:"trigger"`
	Status       ImportStatus        `json:"status"`
	Counters     RunCounters         `json:"counters"`
	Message      string              `json:"message,omitempty"`
	ErrorDetails []ImportErrorDetail `json:"error_details,omitempty"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// NewImportHistory opens a pending run for supplier. An empty trigger means
// the schedule started it.
func NewImportHistory(supplier string, trigger Trigger) (*ImportHistory, error) {
	supplier = strings.TrimSpace(supplier)
	if supplier == "" {
		return nil, shared.NewDomainError("INVALID_SUPPLIER", "supplier is required")
	}
	if trigger == "" {
		trigger = TriggerSchedule
	}
	return &ImportHistory{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Supplier:          supplier,
		Trigger:           trigger,
		Status:            ImportStatusPending,
		ErrorDetails:      []ImportErrorDetail{},
	}, nil
}

func invalidTransition(from, to ImportStatus) error {
	return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("run cannot move from %s to %s", from, to))
}

// touch stamps a state change.
func (h *ImportHistory) touch(status ImportStatus) time.Time {
	now := time.Now()
	h.Status = status
	h.UpdatedAt = now
	h.IncrementVersion()
	return now
}

func (h *ImportHistory) StartProcessing() error {
	if h.Status != ImportStatusPending {
		return invalidTransition(h.Status, ImportStatusProcessing)
	}
	now := h.touch(ImportStatusProcessing)
	h.StartedAt = &now
	return nil
}

// Complete closes a processing run with its counters and kept record errors.
func (h *ImportHistory) Complete(counters RunCounters, errors []ImportErrorDetail) error {
	if h.Status != ImportStatusProcessing {
		return invalidTransition(h.Status, ImportStatusCompleted)
	}
	h.close(ImportStatusCompleted, counters, errors)
	return nil
}

// Fail closes a run that aborted. A pending run can fail too, e.g. when the
// process died before it started.
func (h *ImportHistory) Fail(message string, counters RunCounters, errors []ImportErrorDetail) error {
	if h.Status.IsTerminal() {
		return invalidTransition(h.Status, ImportStatusFailed)
	}
	h.Message = message
	h.close(ImportStatusFailed, counters, errors)
	return nil
}

func (h *ImportHistory) close(status ImportStatus, counters RunCounters, errors []ImportErrorDetail) {
	h.Counters = counters
	h.ErrorDetails = errors
	if h.ErrorDetails == nil {
		h.ErrorDetails = []ImportErrorDetail{}
	}
	now := h.touch(status)
	h.CompletedAt = &now
}

func (h *ImportHistory) HasErrors() bool {
	return h.Counters.Failed > 0 || len(h.ErrorDetails) > 0
}

// ErrorDetailsJSON encodes the record errors for storage; none encode as "[]".
func (h *ImportHistory) ErrorDetailsJSON() (string, error) {
	details := h.ErrorDetails
	if details == nil {
		details = []ImportErrorDetail{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("encode error details: %w", err)
	}
	return string(data), nil
}

func (h *ImportHistory) SetErrorDetailsFromJSON(raw string) error {
	details := []ImportErrorDetail{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &details); err != nil {
			return fmt.Errorf("decode error details: %w", err)
		}
	}
	h.ErrorDetails = details
	return nil
}

// Duration is how long the run took, or has taken so far.
func (h *ImportHistory) Duration() time.Duration {
	switch {
	case h.StartedAt == nil:
		return 0
	case h.CompletedAt == nil:
		return time.Since(*h.StartedAt)
	default:
		return h.CompletedAt.Sub(*h.StartedAt)
	}
}
