package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

type stubStore struct {
	records []*entity.JobRecord
}

func (s *stubStore) EnsureProcessing(context.Context, string, string) error   { return nil }
func (s *stubStore) SaveResult(context.Context, *entity.JobRecord) error      { return nil }
func (s *stubStore) MarkFailed(context.Context, string, string, string) error { return nil }
func (s *stubStore) Get(context.Context, string, string) (*entity.JobRecord, error) {
	return nil, nil
}
func (s *stubStore) ListCompleted(context.Context, string) ([]*entity.JobRecord, error) {
	return s.records, nil
}
func (s *stubStore) Close() error { return nil }

func TestExportCompletedXLSX(t *testing.T) {
	total := 6.10
	store := &stubStore{records: []*entity.JobRecord{
		{
			UserID:               "user-1",
			JobID:                "job-1",
			Status:               constants.JobStatusCompleted,
			Merchant:             "Walmart",
			PurchaseDate:         "2024-01-02",
			Total:                &total,
			Currency:             "USD",
			Category:             string(constants.Groceries),
			CategoryConfidence:   0.92,
			CategorizationMethod: constants.MethodRemoteModel,
			Alerts: []entity.AlertEvent{
				{Type: constants.AlertHighTotal, Message: "high"},
			},
			ProcessedAt: time.Now().UTC(),
		},
	}}

	svc := NewService(store, nil)
	data, err := svc.ExportCompletedXLSX(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Purchase Date", rows[0][0])
	assert.Equal(t, "2024-01-02", rows[1][0])
	assert.Equal(t, "Walmart", rows[1][1])
	assert.Equal(t, string(constants.Groceries), rows[1][2])
	assert.Equal(t, "HIGH_TOTAL", rows[1][9])
}

func TestExportEmptyListProducesHeaderOnly(t *testing.T) {
	svc := NewService(&stubStore{}, nil)
	data, err := svc.ExportCompletedXLSX(context.Background(), "user-1")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
