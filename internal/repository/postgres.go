package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// DBConfig holds Postgres pool settings.
type DBConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	HealthTimeout   time.Duration
}

// NewPool builds a pgx pool from config.
func NewPool(ctx context.Context, cfg DBConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, common.WrapError(err, "parse database url")
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	return pgxpool.NewWithConfig(ctx, pc)
}

// HealthCheck pings the pool with a bounded timeout.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return pool.Ping(ctx)
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS job_records (
	user_id               TEXT NOT NULL,
	job_id                TEXT NOT NULL,
	status                TEXT NOT NULL,
	merchant              TEXT NOT NULL DEFAULT '',
	purchase_date         TEXT NOT NULL DEFAULT '',
	subtotal              DOUBLE PRECISION,
	tax                   DOUBLE PRECISION,
	total                 DOUBLE PRECISION,
	currency              TEXT NOT NULL DEFAULT '',
	category              TEXT NOT NULL DEFAULT '',
	category_confidence   REAL NOT NULL DEFAULT 0,
	categorization_method TEXT NOT NULL DEFAULT '',
	alerts                JSONB NOT NULL DEFAULT '[]',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at          TIMESTAMPTZ,
	error                 TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, job_id)
)`

// PostgresJobStore persists job records in Postgres.
type PostgresJobStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresJobStore(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*PostgresJobStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, common.PersistenceError("bootstrap schema", err)
	}
	return &PostgresJobStore{pool: pool, logger: logger}, nil
}

func (s *PostgresJobStore) EnsureProcessing(ctx context.Context, userID, jobID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_records (user_id, job_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, job_id) DO NOTHING`,
		userID, jobID, string(constants.JobStatusProcessing),
	)
	if err != nil {
		return common.PersistenceError("ensure processing", err)
	}
	return nil
}

func (s *PostgresJobStore) SaveResult(ctx context.Context, rec *entity.JobRecord) error {
	alerts, err := json.Marshal(alertsOrEmpty(rec.Alerts))
	if err != nil {
		return common.PersistenceError("marshal alerts", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO job_records (
			user_id, job_id, status, merchant, purchase_date,
			subtotal, tax, total, currency,
			category, category_confidence, categorization_method,
			alerts, created_at, processed_at, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (user_id, job_id) DO UPDATE SET
			status = EXCLUDED.status,
			merchant = EXCLUDED.merchant,
			purchase_date = EXCLUDED.purchase_date,
			subtotal = EXCLUDED.subtotal,
			tax = EXCLUDED.tax,
			total = EXCLUDED.total,
			currency = EXCLUDED.currency,
			category = EXCLUDED.category,
			category_confidence = EXCLUDED.category_confidence,
			categorization_method = EXCLUDED.categorization_method,
			alerts = EXCLUDED.alerts,
			processed_at = EXCLUDED.processed_at,
			error = EXCLUDED.error`,
		rec.UserID, rec.JobID, string(rec.Status), rec.Merchant, rec.PurchaseDate,
		rec.Subtotal, rec.Tax, rec.Total, rec.Currency,
		rec.Category, rec.CategoryConfidence, string(rec.CategorizationMethod),
		alerts, rec.CreatedAt, rec.ProcessedAt, rec.Error,
	)
	if err != nil {
		return common.PersistenceError("save result", err)
	}
	return nil
}

func (s *PostgresJobStore) MarkFailed(ctx context.Context, userID, jobID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_records (user_id, job_id, status, processed_at, error)
		VALUES ($1, $2, $3, now(), $4)
		ON CONFLICT (user_id, job_id) DO UPDATE SET
			status = EXCLUDED.status,
			processed_at = EXCLUDED.processed_at,
			error = EXCLUDED.error`,
		userID, jobID, string(constants.JobStatusFailed), errMsg,
	)
	if err != nil {
		return common.PersistenceError("mark failed", err)
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, userID, jobID string) (*entity.JobRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, job_id, status, merchant, purchase_date,
		       subtotal, tax, total, currency,
		       category, category_confidence, categorization_method,
		       alerts, created_at, COALESCE(processed_at, created_at), error
		FROM job_records WHERE user_id = $1 AND job_id = $2`,
		userID, jobID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.PersistenceError("get record", err)
	}
	return rec, err
}

func (s *PostgresJobStore) ListCompleted(ctx context.Context, userID string) ([]*entity.JobRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, job_id, status, merchant, purchase_date,
		       subtotal, tax, total, currency,
		       category, category_confidence, categorization_method,
		       alerts, created_at, COALESCE(processed_at, created_at), error
		FROM job_records
		WHERE user_id = $1 AND status = $2
		ORDER BY processed_at`,
		userID, string(constants.JobStatusCompleted),
	)
	if err != nil {
		return nil, common.PersistenceError("list completed", err)
	}
	defer rows.Close()

	var out []*entity.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresJobStore) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*entity.JobRecord, error) {
	var (
		rec       entity.JobRecord
		status    string
		method    string
		alertsRaw []byte
	)
	err := row.Scan(
		&rec.UserID, &rec.JobID, &status, &rec.Merchant, &rec.PurchaseDate,
		&rec.Subtotal, &rec.Tax, &rec.Total, &rec.Currency,
		&rec.Category, &rec.CategoryConfidence, &method,
		&alertsRaw, &rec.CreatedAt, &rec.ProcessedAt, &rec.Error,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = constants.JobStatus(status)
	rec.CategorizationMethod = constants.CategorizationMethod(method)
	if len(alertsRaw) > 0 {
		if err := json.Unmarshal(alertsRaw, &rec.Alerts); err != nil {
			return nil, common.PersistenceError("decode alerts", err)
		}
	}
	return &rec, nil
}

func alertsOrEmpty(alerts []entity.AlertEvent) []entity.AlertEvent {
	if alerts == nil {
		return []entity.AlertEvent{}
	}
	return alerts
}
