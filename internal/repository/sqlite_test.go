package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

func newTestStore(t *testing.T) *SQLiteJobStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "jobs.db")
	store, err := NewSQLiteJobStore(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord() *entity.JobRecord {
	total := 125.50
	subtotal := 118.00
	tax := 7.50
	return &entity.JobRecord{
		UserID:               "user-1",
		JobID:                "job-1",
		Status:               constants.JobStatusCompleted,
		Merchant:             "Walmart",
		PurchaseDate:         "2024-01-02",
		Subtotal:             &subtotal,
		Tax:                  &tax,
		Total:                &total,
		Currency:             "USD",
		Category:             string(constants.Groceries),
		CategoryConfidence:   0.92,
		CategorizationMethod: constants.MethodRemoteModel,
		Alerts: []entity.AlertEvent{
			{Type: constants.AlertHighTotal, Message: "Receipt total $125.50 exceeds threshold of $100.00"},
		},
		CreatedAt:   time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		ProcessedAt: time.Date(2024, 1, 2, 10, 0, 5, 0, time.UTC),
	}
}

func TestSaveResultRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureProcessing(ctx, "user-1", "job-1"))
	require.NoError(t, store.SaveResult(ctx, sampleRecord()))

	got, err := store.Get(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, "Walmart", got.Merchant)
	assert.Equal(t, "2024-01-02", got.PurchaseDate)
	require.NotNil(t, got.Total)
	assert.InDelta(t, 125.50, *got.Total, 0.001)
	assert.Equal(t, constants.MethodRemoteModel, got.CategorizationMethod)
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, constants.AlertHighTotal, got.Alerts[0].Type)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 5, 0, time.UTC), got.ProcessedAt)
}

func TestSaveResultIsIdempotentOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, store.SaveResult(ctx, rec))
	// Redelivery: second save must converge, not error.
	rec.Merchant = "Walmart Supercenter"
	require.NoError(t, store.SaveResult(ctx, rec))

	got, err := store.Get(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Walmart Supercenter", got.Merchant)
}

func TestEnsureProcessingDoesNotDowngradeTerminalRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, sampleRecord()))
	require.NoError(t, store.EnsureProcessing(ctx, "user-1", "job-1"))

	got, err := store.Get(ctx, "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
}

func TestMarkFailedWithoutPriorRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MarkFailed(ctx, "user-1", "job-9", "text extraction failed"))

	got, err := store.Get(ctx, "user-1", "job-9")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, "text extraction failed", got.Error)
	assert.Nil(t, got.Total)
}

func TestListCompletedFiltersByStatusAndUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	done := sampleRecord()
	require.NoError(t, store.SaveResult(ctx, done))
	require.NoError(t, store.MarkFailed(ctx, "user-1", "job-2", "boom"))

	other := sampleRecord()
	other.UserID = "user-2"
	other.JobID = "job-3"
	require.NoError(t, store.SaveResult(ctx, other))

	got, err := store.ListCompleted(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "job-1", got[0].JobID)
}
