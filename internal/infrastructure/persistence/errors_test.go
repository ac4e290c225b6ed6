package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/domain/shared"
)

func TestIsLockContention(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pgx lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"pgx serialization", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pq deadlock", &pq.Error{Code: "40P01"}, true},
		{"pq not null", &pq.Error{Code: "23502"}, false},
		{"sqlite busy", errors.New("database is locked"), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLockContention(tt.err))
		})
	}
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), shared.ErrNotFound)

	err := translateError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	assert.True(t, shared.IsLockContention(err))
	assert.Equal(t, "LOCK_CONTENTION", shared.ErrorCode(err))

	plain := errors.New("boom")
	assert.Same(t, plain, translateError(plain))
}

func TestGormProductRepository_UpdateLockContention(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	repo := NewGormProductRepository(gormDB)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET`)).
		WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})

	p := &catalog.Product{BaseAggregateRoot: shared.NewBaseAggregateRoot(), Name: "Mouse", MPN: "M1"}
	p.ID = uuid.New()
	err = repo.Update(context.Background(), p)
	require.Error(t, err)
	assert.True(t, shared.IsLockContention(err))
	assert.Equal(t, 1, p.Version, "a failed write keeps the read version for the retry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormProductRepository_UpdateStaleVersion(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	repo := NewGormProductRepository(gormDB)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	p := &catalog.Product{BaseAggregateRoot: shared.NewBaseAggregateRoot(), Name: "Mouse", MPN: "M1"}
	p.ID = uuid.New()
	err = repo.Update(context.Background(), p)
	assert.ErrorIs(t, err, shared.ErrVersionConflict)
	assert.Equal(t, 1, p.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
