// Package pipeline sequences the enrichment stages for one receipt job:
// extract, parse, categorize, detect anomalies, persist, notify.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/anomaly"
	"github.com/joseph-ayodele/receipt-pipeline/internal/categorize"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/extract"
	"github.com/joseph-ayodele/receipt-pipeline/internal/notify"
	"github.com/joseph-ayodele/receipt-pipeline/internal/parser"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
)

// Stage identifies where in the job lifecycle an error occurred.
type Stage string

const (
	StageReceived     Stage = "RECEIVED"
	StageExtracting   Stage = "EXTRACTING"
	StageParsing      Stage = "PARSING"
	StageCategorizing Stage = "CATEGORIZING"
	StageDetecting    Stage = "DETECTING"
	StagePersisting   Stage = "PERSISTING"
	StageDone         Stage = "DONE"
)

// Opts carries the orchestrator's collaborators. Extractor and Store are
// required; everything else degrades gracefully when absent.
type Opts struct {
	Logger    *slog.Logger
	Extractor extract.TextExtractor
	Artifacts extract.ArtifactStore
	Primary   categorize.Strategy
	Fallback  categorize.Strategy
	Detector  *anomaly.Detector
	Store     repository.JobStore
	Notifier  notify.Notifier
}

// Orchestrator runs the enrichment stages in order. A stage failure marks
// the job FAILED; redelivered triggers rerun the whole job and overwrite
// the record, so every stage must tolerate re-execution.
type Orchestrator struct {
	logger    *slog.Logger
	extractor extract.TextExtractor
	artifacts extract.ArtifactStore
	primary   categorize.Strategy
	fallback  categorize.Strategy
	detector  *anomaly.Detector
	store     repository.JobStore
	notifier  notify.Notifier
	now       func() time.Time
}

func NewOrchestrator(opts Opts) (*Orchestrator, error) {
	if opts.Extractor == nil {
		return nil, common.ValidationErrorf("orchestrator requires a text extractor")
	}
	if opts.Store == nil {
		return nil, common.ValidationErrorf("orchestrator requires a job store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	detector := opts.Detector
	if detector == nil {
		detector = anomaly.NewDetector(0, nil, logger)
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = categorize.NewRuleBasedStrategy(nil, logger)
	}
	return &Orchestrator{
		logger:    logger,
		extractor: opts.Extractor,
		artifacts: opts.Artifacts,
		primary:   opts.Primary,
		fallback:  fallback,
		detector:  detector,
		store:     opts.Store,
		notifier:  opts.Notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Process runs one job end to end and returns the persisted record.
// Validation and persistence errors return before any FAILED record is
// written; stage failures after intake are recorded via MarkFailed.
func (o *Orchestrator) Process(ctx context.Context, trigger entity.JobTrigger) (*entity.JobRecord, error) {
	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	ctx = common.WithJobID(ctx, trigger.JobID)
	logger := o.logger.With("job_id", trigger.JobID, "user_id", trigger.UserID)
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		logger = logger.With("req_id", rid)
	}
	step := func(s Stage) { logger.Debug("pipeline.stage", "stage", string(s)) }

	started := o.now()
	step(StageReceived)
	logger.Info("pipeline.job.start", "source_reference", trigger.SourceRef)

	if err := o.store.EnsureProcessing(ctx, trigger.UserID, trigger.JobID); err != nil {
		logger.Error("pipeline.intake_failed", "stage", string(StageReceived), "error", err)
		return nil, err
	}

	step(StageExtracting)
	extraction, err := o.extractor.Extract(ctx, trigger.SourceRef)
	if err != nil {
		return nil, o.fail(ctx, logger, trigger, StageExtracting, err)
	}
	logger.Info("pipeline.extract.ok",
		"fragments", len(extraction.Fragments),
		"lines", len(extraction.Lines()),
		"method", extraction.Method,
		"duration_ms", extraction.Duration.Milliseconds(),
	)

	step(StageParsing)
	receipt := parser.Parse(trigger.JobID, trigger.UserID, extraction.Fragments)

	if o.artifacts != nil {
		// Audit artifact; losing it never fails the job.
		if ref, err := o.artifacts.SaveRaw(ctx, trigger.JobID, extraction.Fragments); err != nil {
			logger.Warn("pipeline.artifact_save_failed", "error", err)
		} else {
			receipt.RawArtifactRef = ref
		}
	}

	step(StageCategorizing)
	categorization := o.categorize(ctx, logger, receipt)
	receipt.ApplyCategory(categorization.Category, categorization.Confidence)

	step(StageDetecting)
	alerts := o.detector.Detect(ctx, receipt)

	step(StagePersisting)
	rec := o.buildRecord(trigger, receipt, categorization, alerts, started)
	if err := o.store.SaveResult(ctx, rec); err != nil {
		return nil, o.fail(ctx, logger, trigger, StagePersisting, err)
	}
	step(StageDone)

	if len(alerts) > 0 && o.notifier != nil {
		if err := o.notifier.Notify(ctx, rec); err != nil {
			logger.Warn("pipeline.notify_failed", "error", err)
		}
	}

	logger.Info("pipeline.job.done",
		"merchant", rec.Merchant,
		"category", rec.Category,
		"method", rec.CategorizationMethod,
		"alerts", len(rec.Alerts),
		"duration_ms", o.now().Sub(started).Milliseconds(),
	)
	return rec, nil
}

// categorize tries the remote strategy and falls back to rules on any
// error. The fallback itself cannot fail; if it somehow does, the receipt
// lands in Other with the coerced confidence.
func (o *Orchestrator) categorize(ctx context.Context, logger *slog.Logger, receipt entity.ParsedReceipt) entity.Categorization {
	req := categorize.Request{
		Merchant:         receipt.Merchant,
		ItemDescriptions: itemDescriptions(receipt.Items),
	}

	if o.primary != nil {
		res, err := o.primary.Categorize(ctx, req)
		if err == nil {
			return entity.Categorization{Category: res.Category, Confidence: res.Confidence, Method: res.Method}
		}
		logger.Warn("pipeline.categorize.fallback", "strategy", o.primary.Name(), "error", err)
	}

	res, err := o.fallback.Categorize(ctx, req)
	if err != nil {
		logger.Error("pipeline.categorize.fallback_failed", "error", err)
		return entity.Categorization{
			Category:   constants.Other,
			Confidence: categorize.CoercedConfidence,
			Method:     constants.MethodRuleBased,
		}
	}
	return entity.Categorization{Category: res.Category, Confidence: res.Confidence, Method: res.Method}
}

func (o *Orchestrator) buildRecord(
	trigger entity.JobTrigger,
	receipt entity.ParsedReceipt,
	categorization entity.Categorization,
	alerts []entity.AlertEvent,
	started time.Time,
) *entity.JobRecord {
	purchaseDate := receipt.PurchaseDate
	if purchaseDate == "" {
		// No date found on the receipt; record the processing date so the
		// stored row is always queryable by date.
		purchaseDate = o.now().Format("2006-01-02")
	}
	return &entity.JobRecord{
		UserID:               trigger.UserID,
		JobID:                trigger.JobID,
		Status:               constants.JobStatusCompleted,
		Merchant:             receipt.Merchant,
		PurchaseDate:         purchaseDate,
		Subtotal:             receipt.Subtotal,
		Tax:                  receipt.Tax,
		Total:                receipt.Total,
		Currency:             receipt.Currency,
		Category:             string(categorization.Category),
		CategoryConfidence:   categorization.Confidence,
		CategorizationMethod: categorization.Method,
		Alerts:               alerts,
		CreatedAt:            started,
		ProcessedAt:          o.now(),
	}
}

// fail records the terminal FAILED state with the failing stage tagged on
// the stored error. MarkFailed is best-effort: if persistence is also
// down, redelivery is the recovery path.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, trigger entity.JobTrigger, stage Stage, cause error) error {
	logger.Error("pipeline.job.failed", "stage", string(stage), "error", cause)
	msg := fmt.Sprintf("%s: %v", stage, cause)
	if err := o.store.MarkFailed(ctx, trigger.UserID, trigger.JobID, msg); err != nil {
		logger.Error("pipeline.mark_failed_error", "error", err)
	}
	return cause
}

// ProcessBatch runs a set of triggers with per-job isolation: one job's
// failure never aborts the rest. Returns the count of successful jobs.
func (o *Orchestrator) ProcessBatch(ctx context.Context, triggers []entity.JobTrigger) int {
	completed := 0
	for _, t := range triggers {
		if ctx.Err() != nil {
			o.logger.Warn("pipeline.batch_cancelled", "remaining", len(triggers)-completed)
			break
		}
		if _, err := o.Process(ctx, t); err != nil {
			o.logger.Error("pipeline.batch_job_failed", "job_id", t.JobID, "error", err)
			continue
		}
		completed++
	}
	return completed
}

func itemDescriptions(items []entity.ReceiptItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Description)
	}
	return out
}
