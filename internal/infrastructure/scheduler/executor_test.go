package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/domain/shared"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) Run(ctx context.Context, supplier string, trigger bulk.Trigger) (importapp.Result, error) {
	args := m.Called(ctx, supplier, trigger)
	return args.Get(0).(importapp.Result), args.Error(1)
}

type mockSweeper struct{ mock.Mock }

func (m *mockSweeper) Sweep(ctx context.Context, now time.Time) (importapp.SweepResult, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(importapp.SweepResult), args.Error(1)
}

func TestImportExecutor_Import(t *testing.T) {
	ctx := context.Background()
	runner := new(mockRunner)
	runner.On("Run", ctx, "cpi", bulk.TriggerSchedule).Return(importapp.Result{Message: importapp.MessageOK}, nil)
	runner.On("Run", ctx, "westnet", bulk.TriggerSchedule).Return(importapp.Result{Message: importapp.MessageError, Error: "HTTP 500"}, nil)
	runner.On("Run", ctx, "quest", bulk.TriggerSchedule).Return(importapp.Result{}, fmt.Errorf("quest: %w", shared.ErrAlreadyRunning))
	runner.On("Run", ctx, "acme", bulk.TriggerSchedule).Return(importapp.Result{}, shared.ErrNotFound)
	runner.On("Run", ctx, "oktabit", bulk.TriggerSchedule).Return(importapp.Result{}, errors.New("redis unreachable"))

	e := NewImportExecutor(runner, nil, nil)

	assert.NoError(t, e.Execute(ctx, NewImportJob("cpi", bulk.TriggerSchedule, 0)))
	err := e.Execute(ctx, NewImportJob("westnet", bulk.TriggerSchedule, 0))
	assert.ErrorContains(t, err, "HTTP 500")
	assert.NoError(t, e.Execute(ctx, NewImportJob("quest", bulk.TriggerSchedule, 0)))
	assert.NoError(t, e.Execute(ctx, NewImportJob("acme", bulk.TriggerSchedule, 0)))
	assert.ErrorContains(t, e.Execute(ctx, NewImportJob("oktabit", bulk.TriggerSchedule, 0)), "redis")
	runner.AssertExpectations(t)
}

func TestImportExecutor_Sweep(t *testing.T) {
	ctx := context.Background()
	sweeper := new(mockSweeper)
	sweeper.On("Sweep", ctx, mock.AnythingOfType("time.Time")).Return(importapp.SweepResult{Archived: 3}, nil)

	e := NewImportExecutor(new(mockRunner), sweeper, nil)
	assert.NoError(t, e.Execute(ctx, NewSweepJob()))
	sweeper.AssertNumberOfCalls(t, "Sweep", 1)

	assert.NoError(t, NewImportExecutor(new(mockRunner), nil, nil).Execute(ctx, NewSweepJob()))
	assert.Error(t, e.Execute(ctx, &Job{Kind: "REPORT"}))
}
