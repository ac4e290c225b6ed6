package importapp

import (
	"fmt"

	"github.com/eshop/backend/internal/domain/shared"
)

// Record error codes
const (
	ErrCodeTransform = "ERR_IMPORT_TRANSFORM"
	ErrCodeCreate    = "ERR_IMPORT_CREATE"
	ErrCodeUpdate    = "ERR_IMPORT_UPDATE"
	ErrCodeUnlink    = "ERR_IMPORT_UNLINK"
	ErrCodeImages    = "ERR_IMPORT_IMAGES"
	ErrCodePanic     = "ERR_IMPORT_PANIC"
)

// defaultMaxErrors bounds the record errors kept per run.
const defaultMaxErrors = 100

// RecordError is a failure of a single supplier record.
type RecordError struct {
	// Record identifies the record, usually by MPN or name.
	Record  string `json:"record"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e RecordError) Error() string {
	return fmt.Sprintf("%s: %s", e.Record, e.Message)
}

// RecordErrors collects record errors up to a limit and counts the rest.
type RecordErrors struct {
	errors     []RecordError
	maxErrors  int
	totalCount int
}

// NewRecordErrors creates a collection keeping at most maxErrors entries.
func NewRecordErrors(maxErrors int) *RecordErrors {
	if maxErrors <= 0 {
		maxErrors = defaultMaxErrors
	}
	return &RecordErrors{
		errors:    make([]RecordError, 0, min(maxErrors, 16)),
		maxErrors: maxErrors,
	}
}

// Add records a failure.
func (c *RecordErrors) Add(record, code string, err error) {
	c.totalCount++
	if len(c.errors) >= c.maxErrors {
		return
	}
	if dc := shared.ErrorCode(err); dc != "" {
		code = dc
	}
	c.errors = append(c.errors, RecordError{Record: record, Code: code, Message: err.Error()})
}

// Errors returns the kept errors.
func (c *RecordErrors) Errors() []RecordError {
	return c.errors
}

// TotalCount returns every error seen, including those not kept.
func (c *RecordErrors) TotalCount() int {
	return c.totalCount
}

// IsTruncated reports whether errors were dropped because of the limit.
func (c *RecordErrors) IsTruncated() bool {
	return c.totalCount > len(c.errors)
}
