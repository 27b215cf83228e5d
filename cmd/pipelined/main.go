// pipelined is the long-running enrichment daemon: it watches a trigger
// directory, runs each job through the pipeline on a worker pool, and
// exposes a gRPC health endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/receipt-pipeline/internal/anomaly"
	"github.com/joseph-ayodele/receipt-pipeline/internal/async"
	"github.com/joseph-ayodele/receipt-pipeline/internal/categorize"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/extract"
	"github.com/joseph-ayodele/receipt-pipeline/internal/notify"
	"github.com/joseph-ayodele/receipt-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/receipt-pipeline/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("pipelined")
	var (
		triggerDir = fs.StringLong("trigger-dir", cfg.Triggers.WatchDir, "directory watched for *.json trigger files")
		sourceRoot = fs.StringLong("source-root", cfg.Extract.SourceRoot, "root directory for trigger source references")
		rulesPath  = fs.StringLong("rules", "", "optional YAML keyword-rule override file")
		healthAddr = fs.StringLong("health-addr", cfg.Server.HealthAddr, "gRPC health listen address")
	)
	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("PIPELINE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg.Triggers.WatchDir = *triggerDir
	cfg.Extract.SourceRoot = *sourceRoot
	cfg.Server.HealthAddr = *healthAddr

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildJobStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("job store init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	fingerprints, closeFingerprints, err := buildFingerprintStore(cfg)
	if err != nil {
		logger.Error("fingerprint store init failed", "error", err)
		os.Exit(1)
	}
	defer closeFingerprints()

	primary, closePrimary, err := buildPrimaryStrategy(ctx, cfg, logger)
	if err != nil {
		logger.Error("categorization strategy init failed", "error", err)
		os.Exit(1)
	}
	defer closePrimary()

	var rules []categorize.KeywordRule
	if *rulesPath != "" {
		rules, err = categorize.LoadRules(*rulesPath)
		if err != nil {
			logger.Error("rules file rejected", "path", *rulesPath, "error", err)
			os.Exit(1)
		}
		logger.Info("keyword rules loaded", "path", *rulesPath, "rules", len(rules))
	}

	notifier := buildNotifier(cfg, logger)

	objects := extract.NewFSObjectStore(cfg.Extract.SourceRoot)
	artifacts := extract.NewFSArtifactStore(cfg.Extract.ArtifactDir)
	extractor := extract.NewTesseractExtractor(objects, cfg.Extract.Languages, logger)

	orch, err := pipeline.NewOrchestrator(pipeline.Opts{
		Logger:    logger,
		Extractor: extractor,
		Artifacts: artifacts,
		Primary:   primary,
		Fallback:  categorize.NewRuleBasedStrategy(rules, logger),
		Detector:  anomaly.NewDetector(cfg.Anomaly.HighTotalThreshold, fingerprints, logger),
		Store:     store,
		Notifier:  notifier,
	})
	if err != nil {
		logger.Error("orchestrator init failed", "error", err)
		os.Exit(1)
	}

	queue := async.NewJobQueue(orch, logger,
		async.WithWorkers(cfg.Workers.Count),
		async.WithQueueSize(cfg.Workers.QueueSize),
		async.WithJobTimeout(cfg.Workers.JobTimeout),
	)

	if err := os.MkdirAll(cfg.Triggers.WatchDir, 0o755); err != nil {
		logger.Error("trigger directory unavailable", "dir", cfg.Triggers.WatchDir, "error", err)
		os.Exit(1)
	}
	watcher := async.NewTriggerWatcher(cfg.Triggers.WatchDir, queue, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("watcher stopped", "error", err)
			stop()
		}
	}()

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.HealthAddr)
	if err != nil {
		logger.Error("health listen failed", "addr", cfg.Server.HealthAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("health serve failed", "error", err)
		}
	}()

	logger.Info("pipelined started",
		"trigger_dir", cfg.Triggers.WatchDir,
		"workers", cfg.Workers.Count,
		"store", cfg.Store.Driver,
		"health_addr", cfg.Server.HealthAddr,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Workers.JobTimeout)
	queue.Shutdown(drainCtx)
	cancel()
	grpcServer.GracefulStop()
	logger.Info("stopped")
}

func buildJobStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.JobStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := repository.NewPool(ctx, repository.DBConfig{
			URL:             cfg.Store.DSN,
			MaxConns:        cfg.Store.MaxConns,
			MinConns:        cfg.Store.MinConns,
			MaxConnLifetime: cfg.Store.MaxConnLifetime,
			MaxConnIdleTime: cfg.Store.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		if err := repository.HealthCheck(ctx, pool, cfg.Store.HealthTimeout); err != nil {
			pool.Close()
			return nil, err
		}
		return repository.NewPostgresJobStore(ctx, pool, logger)
	default:
		return repository.NewSQLiteJobStore(ctx, cfg.Store.DSN, logger)
	}
}

func buildFingerprintStore(cfg *common.Config) (anomaly.FingerprintStore, func(), error) {
	if cfg.Anomaly.FingerprintDB == "" {
		return anomaly.NewMemoryStore(), func() {}, nil
	}
	store, err := repository.NewBoltFingerprintStore(cfg.Anomaly.FingerprintDB, cfg.Anomaly.FingerprintTTL)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// buildPrimaryStrategy picks the remote categorizer: Gemini when its key is
// set, otherwise the OpenAI-compatible endpoint, otherwise none (rule-based
// only).
func buildPrimaryStrategy(ctx context.Context, cfg *common.Config, logger *slog.Logger) (categorize.Strategy, func(), error) {
	if cfg.Gemini.APIKey != "" {
		s, err := categorize.NewGeminiStrategy(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	if cfg.LLM.APIKey != "" {
		s := categorize.NewOpenAIStrategy(categorize.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		return s, func() {}, nil
	}
	logger.Warn("no remote categorizer configured, using rule-based only")
	return nil, func() {}, nil
}

func buildNotifier(cfg *common.Config, logger *slog.Logger) notify.Notifier {
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		n, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, logger)
		if err != nil {
			logger.Warn("telegram notifier unavailable, logging alerts instead", "error", err)
			return notify.NewLogNotifier(logger)
		}
		return n
	}
	return notify.NewLogNotifier(logger)
}
