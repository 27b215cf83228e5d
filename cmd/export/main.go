// export writes a user's completed receipts to an XLSX workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/receipt-pipeline/internal/export"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
)

func main() {
	var (
		dbPath = flag.String("db", "receipts.db", "sqlite database path")
		userID = flag.String("user", "local", "user id to export")
		out    = flag.String("out", "receipts.xlsx", "output workbook path")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	store, err := repository.NewSQLiteJobStore(ctx, *dbPath, logger)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	svc := export.NewService(store, logger)
	data, err := svc.ExportCompletedXLSX(ctx, *userID)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("write workbook", "path", *out, "error", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(data))
}
