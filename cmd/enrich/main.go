// enrich runs a single receipt through the pipeline and prints the stored
// record. Useful for smoke-testing OCR and parsing without the daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/internal/anomaly"
	"github.com/joseph-ayodele/receipt-pipeline/internal/categorize"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/extract"
	"github.com/joseph-ayodele/receipt-pipeline/internal/notify"
	"github.com/joseph-ayodele/receipt-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
)

func main() {
	var (
		sourceRef = flag.String("source", "", "source reference, relative to -root (required)")
		root      = flag.String("root", ".", "root directory for source references")
		userID    = flag.String("user", "local", "user id recorded on the job")
		jobID     = flag.String("job", "", "job id (random when empty)")
		dbPath    = flag.String("db", "receipts.db", "sqlite database path")
		lang      = flag.String("lang", "eng", "OCR language")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *sourceRef == "" {
		fmt.Fprintln(os.Stderr, "usage: enrich -source <file> [-root dir] [-user id]")
		os.Exit(2)
	}
	if *jobID == "" {
		*jobID = uuid.NewString()
	}

	ctx := context.Background()

	store, err := repository.NewSQLiteJobStore(ctx, *dbPath, logger)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	objects := extract.NewFSObjectStore(*root)
	extractor := extract.NewTesseractExtractor(objects, []string{*lang}, logger)

	var primary categorize.Strategy
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		primary = categorize.NewOpenAIStrategy(categorize.OpenAIConfig{APIKey: key}, logger)
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Opts{
		Logger:    logger,
		Extractor: extractor,
		Primary:   primary,
		Detector:  anomaly.NewDetector(common.LoadConfig().Anomaly.HighTotalThreshold, anomaly.NewMemoryStore(), logger),
		Store:     store,
		Notifier:  notify.NewLogNotifier(logger),
	})
	if err != nil {
		logger.Error("orchestrator init failed", "error", err)
		os.Exit(1)
	}

	rec, err := orch.Process(ctx, entity.JobTrigger{
		JobID:     *jobID,
		UserID:    *userID,
		SourceRef: *sourceRef,
	})
	if err != nil {
		logger.Error("job failed", "job_id", *jobID, "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		logger.Error("encode record", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
