package bulk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportStatus(t *testing.T) {
	tests := []struct {
		status   ImportStatus
		valid    bool
		terminal bool
	}{
		{ImportStatusPending, true, false},
		{ImportStatusProcessing, true, false},
		{ImportStatusCompleted, true, true},
		{ImportStatusFailed, true, true},
		{ImportStatus("bogus"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestNewImportHistory(t *testing.T) {
	h, err := NewImportHistory(" cpi ", "")
	require.NoError(t, err)
	assert.Equal(t, "cpi", h.Supplier)
	assert.Equal(t, TriggerSchedule, h.Trigger)
	assert.Equal(t, ImportStatusPending, h.Status)

	_, err = NewImportHistory("", TriggerManual)
	assert.Error(t, err)
}

func TestImportHistory_Lifecycle(t *testing.T) {
	t.Run("pending to completed", func(t *testing.T) {
		h, err := NewImportHistory("westnet", TriggerManual)
		require.NoError(t, err)

		require.NoError(t, h.StartProcessing())
		assert.Equal(t, ImportStatusProcessing, h.Status)
		require.NotNil(t, h.StartedAt)

		counters := RunCounters{Total: 3, Created: 1, Updated: 1, Skipped: 1}
		require.NoError(t, h.Complete(counters, nil))
		assert.Equal(t, ImportStatusCompleted, h.Status)
		assert.Equal(t, counters, h.Counters)
		assert.NotNil(t, h.CompletedAt)
		assert.False(t, h.HasErrors())
		assert.GreaterOrEqual(t, h.Duration().Nanoseconds(), int64(0))
	})

	t.Run("cannot complete before starting", func(t *testing.T) {
		h, _ := NewImportHistory("westnet", TriggerManual)
		assert.Error(t, h.Complete(RunCounters{}, nil))
	})

	t.Run("fail keeps the message", func(t *testing.T) {
		h, _ := NewImportHistory("oktabit", TriggerSchedule)
		require.NoError(t, h.StartProcessing())
		require.NoError(t, h.Fail("fetch failed", RunCounters{}, nil))
		assert.Equal(t, ImportStatusFailed, h.Status)
		assert.Equal(t, "fetch failed", h.Message)
		assert.Error(t, h.Fail("again", RunCounters{}, nil))
	})
}

func TestImportHistory_ErrorDetailsJSON(t *testing.T) {
	h, _ := NewImportHistory("cpi", TriggerManual)

	js, err := h.ErrorDetailsJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", js)

	h.ErrorDetails = []ImportErrorDetail{{Record: "MPN-1", Code: "WRITE_FAILED", Message: "boom"}}
	js, err = h.ErrorDetailsJSON()
	require.NoError(t, err)

	other, _ := NewImportHistory("cpi", TriggerManual)
	require.NoError(t, other.SetErrorDetailsFromJSON(js))
	assert.Equal(t, h.ErrorDetails, other.ErrorDetails)
	assert.True(t, other.HasErrors())

	assert.Error(t, other.SetErrorDetailsFromJSON("{not json"))
}
