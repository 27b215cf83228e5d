// Package export renders completed job records as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
)

// Service is a tiny façade over the job store that produces XLSX bytes.
type Service struct {
	store  repository.JobStore
	logger *slog.Logger
}

func NewService(store repository.JobStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportCompletedXLSX returns an XLSX workbook of a user's completed jobs.
func (s *Service) ExportCompletedXLSX(ctx context.Context, userID string) ([]byte, error) {
	start := time.Now()

	recs, err := s.store.ListCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query completed jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Receipts"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Purchase Date",
		"Merchant",
		"Category",
		"Confidence",
		"Method",
		"Subtotal",
		"Tax",
		"Total",
		"Currency",
		"Alerts",
		"Job ID",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.PurchaseDate)
		write(2, r.Merchant)
		write(3, r.Category)
		write(4, fmt.Sprintf("%.2f", r.CategoryConfidence))
		write(5, string(r.CategorizationMethod))
		write(6, amountCell(r.Subtotal))
		write(7, amountCell(r.Tax))
		write(8, amountCell(r.Total))
		write(9, r.Currency)
		write(10, alertSummary(r.Alerts))
		write(11, r.JobID)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "C", "C", 18)
	_ = f.SetColWidth(sheet, "D", "E", 12)
	_ = f.SetColWidth(sheet, "F", "H", 12)
	_ = f.SetColWidth(sheet, "J", "J", 48)
	_ = f.SetColWidth(sheet, "K", "K", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func amountCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

func alertSummary(alerts []entity.AlertEvent) string {
	if len(alerts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(alerts))
	for _, a := range alerts {
		parts = append(parts, string(a.Type))
	}
	return strings.Join(parts, ", ")
}
