package dto

import "net/http"

// Error codes of the API.
const (
	ErrCodeInternal       = "ERR_INTERNAL"
	ErrCodeBadRequest     = "ERR_BAD_REQUEST"
	ErrCodeValidation     = "ERR_VALIDATION"
	ErrCodeNotFound       = "ERR_NOT_FOUND"
	ErrCodeConflict       = "ERR_CONFLICT"
	ErrCodeAlreadyRunning = "ERR_ALREADY_RUNNING"
	ErrCodeNoErrors       = "ERR_NO_ERRORS"
	ErrCodeRateLimited    = "ERR_RATE_LIMITED"
	ErrCodeUnavailable    = "ERR_UNAVAILABLE"
)

var statusByCode = map[string]int{
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeConflict:       http.StatusConflict,
	ErrCodeAlreadyRunning: http.StatusConflict,
	ErrCodeNoErrors:       http.StatusNotFound,
	ErrCodeRateLimited:    http.StatusTooManyRequests,
	ErrCodeUnavailable:    http.StatusServiceUnavailable,
}

// domainCodes maps domain error codes onto API codes.
var domainCodes = map[string]string{
	"NOT_FOUND":        ErrCodeNotFound,
	"ALREADY_EXISTS":   ErrCodeConflict,
	"ALREADY_RUNNING":  ErrCodeAlreadyRunning,
	"INVALID_INPUT":    ErrCodeValidation,
	"INVALID_STATE":    ErrCodeConflict,
	"INVALID_SUPPLIER": ErrCodeValidation,
	"NO_ERRORS":        ErrCodeNoErrors,
	"LOCK_CONTENTION":  ErrCodeConflict,
}

// HTTPStatus returns the status of an API error code, 500 when unknown.
func HTTPStatus(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode converts a domain error code to its API code.
// Unknown codes become ERR_INTERNAL.
func NormalizeErrorCode(domainCode string) string {
	if c, ok := domainCodes[domainCode]; ok {
		return c
	}
	return ErrCodeInternal
}
