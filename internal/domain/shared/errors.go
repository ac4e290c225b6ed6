package shared

import "errors"

// DomainError is an error with a stable code the HTTP layer maps to a
// response. Compare with errors.Is against the sentinels below.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a domain error.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound        = NewDomainError("NOT_FOUND", "Resource not found")
	ErrMissingIdentity = NewDomainError("MISSING_IDENTITY", "Product has neither MPN nor barcode")
	// ErrLockContention is returned by repositories when the store reports a
	// deadlock or lock timeout. Callers may retry the operation.
	ErrLockContention = NewDomainError("LOCK_CONTENTION", "Write aborted by lock contention")
	ErrAlreadyRunning = NewDomainError("ALREADY_RUNNING", "Import already running for supplier")
	// ErrVersionConflict is returned by an update whose copy is older than
	// the stored row. Reload and apply the change again.
	ErrVersionConflict = NewDomainError("OPTIMISTIC_LOCK_FAILED", "Row was modified by another writer")
)

// IsLockContention reports whether err wraps ErrLockContention.
func IsLockContention(err error) bool {
	return errors.Is(err, ErrLockContention)
}

// ErrorCode returns the code of the DomainError in err's chain, or "".
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
