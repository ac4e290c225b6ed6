package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/eshop/backend/internal/domain/shared"
)

// SQLSTATE codes a writer may retry: deadlock_detected, lock_not_available
// and serialization_failure.
var lockContentionCodes = map[string]struct{}{
	"40P01": {},
	"55P03": {},
	"40001": {},
}

// translateError maps driver errors onto domain errors. Lock contention
// wraps shared.ErrLockContention so the importer can retry the batch.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case IsLockContention(err):
		return fmt.Errorf("%w: %v", shared.ErrLockContention, err)
	}
	return err
}

// IsLockContention reports whether err is a deadlock, lock timeout or
// serialization failure from postgres (pgx or lib/pq) or a busy sqlite file.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := lockContentionCodes[pgErr.Code]
		return ok
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		_, ok := lockContentionCodes[string(pqErr.Code)]
		return ok
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "deadlock detected")
}
