package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS job_records (
	user_id               TEXT NOT NULL,
	job_id                TEXT NOT NULL,
	status                TEXT NOT NULL,
	merchant              TEXT NOT NULL DEFAULT '',
	purchase_date         TEXT NOT NULL DEFAULT '',
	subtotal              REAL,
	tax                   REAL,
	total                 REAL,
	currency              TEXT NOT NULL DEFAULT '',
	category              TEXT NOT NULL DEFAULT '',
	category_confidence   REAL NOT NULL DEFAULT 0,
	categorization_method TEXT NOT NULL DEFAULT '',
	alerts                TEXT NOT NULL DEFAULT '[]',
	created_at            TEXT NOT NULL DEFAULT '',
	processed_at          TEXT NOT NULL DEFAULT '',
	error                 TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, job_id)
)`

// SQLiteJobStore persists job records in a local SQLite file. It backs the
// single-binary deployment where running Postgres is overkill.
type SQLiteJobStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteJobStore(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteJobStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.PersistenceError("open sqlite", err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, common.PersistenceError("bootstrap schema", err)
	}
	return &SQLiteJobStore{db: db, logger: logger}, nil
}

func (s *SQLiteJobStore) EnsureProcessing(ctx context.Context, userID, jobID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_records (user_id, job_id, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, job_id) DO NOTHING`,
		userID, jobID, string(constants.JobStatusProcessing), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return common.PersistenceError("ensure processing", err)
	}
	return nil
}

func (s *SQLiteJobStore) SaveResult(ctx context.Context, rec *entity.JobRecord) error {
	alerts, err := json.Marshal(alertsOrEmpty(rec.Alerts))
	if err != nil {
		return common.PersistenceError("marshal alerts", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_records (
			user_id, job_id, status, merchant, purchase_date,
			subtotal, tax, total, currency,
			category, category_confidence, categorization_method,
			alerts, created_at, processed_at, error
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (user_id, job_id) DO UPDATE SET
			status = excluded.status,
			merchant = excluded.merchant,
			purchase_date = excluded.purchase_date,
			subtotal = excluded.subtotal,
			tax = excluded.tax,
			total = excluded.total,
			currency = excluded.currency,
			category = excluded.category,
			category_confidence = excluded.category_confidence,
			categorization_method = excluded.categorization_method,
			alerts = excluded.alerts,
			processed_at = excluded.processed_at,
			error = excluded.error`,
		rec.UserID, rec.JobID, string(rec.Status), rec.Merchant, rec.PurchaseDate,
		nullFloat(rec.Subtotal), nullFloat(rec.Tax), nullFloat(rec.Total), rec.Currency,
		rec.Category, rec.CategoryConfidence, string(rec.CategorizationMethod),
		string(alerts), formatTime(rec.CreatedAt), formatTime(rec.ProcessedAt), rec.Error,
	)
	if err != nil {
		return common.PersistenceError("save result", err)
	}
	return nil
}

func (s *SQLiteJobStore) MarkFailed(ctx context.Context, userID, jobID, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_records (user_id, job_id, status, created_at, processed_at, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, job_id) DO UPDATE SET
			status = excluded.status,
			processed_at = excluded.processed_at,
			error = excluded.error`,
		userID, jobID, string(constants.JobStatusFailed), now, now, errMsg,
	)
	if err != nil {
		return common.PersistenceError("mark failed", err)
	}
	return nil
}

func (s *SQLiteJobStore) Get(ctx context.Context, userID, jobID string) (*entity.JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, job_id, status, merchant, purchase_date,
		       subtotal, tax, total, currency,
		       category, category_confidence, categorization_method,
		       alerts, created_at, processed_at, error
		FROM job_records WHERE user_id = ? AND job_id = ?`,
		userID, jobID,
	)
	rec, err := scanSQLiteRecord(row)
	if err != nil {
		return nil, common.PersistenceError("get record", err)
	}
	return rec, nil
}

func (s *SQLiteJobStore) ListCompleted(ctx context.Context, userID string) ([]*entity.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, job_id, status, merchant, purchase_date,
		       subtotal, tax, total, currency,
		       category, category_confidence, categorization_method,
		       alerts, created_at, processed_at, error
		FROM job_records
		WHERE user_id = ? AND status = ?
		ORDER BY processed_at`,
		userID, string(constants.JobStatusCompleted),
	)
	if err != nil {
		return nil, common.PersistenceError("list completed", err)
	}
	defer rows.Close()

	var out []*entity.JobRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, common.PersistenceError("scan record", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteJobStore) Close() error {
	return s.db.Close()
}

func scanSQLiteRecord(row rowScanner) (*entity.JobRecord, error) {
	var (
		rec                    entity.JobRecord
		status, method         string
		subtotal, tax, total   sql.NullFloat64
		alertsRaw              string
		createdAt, processedAt string
	)
	err := row.Scan(
		&rec.UserID, &rec.JobID, &status, &rec.Merchant, &rec.PurchaseDate,
		&subtotal, &tax, &total, &rec.Currency,
		&rec.Category, &rec.CategoryConfidence, &method,
		&alertsRaw, &createdAt, &processedAt, &rec.Error,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = constants.JobStatus(status)
	rec.CategorizationMethod = constants.CategorizationMethod(method)
	rec.Subtotal = floatPtr(subtotal)
	rec.Tax = floatPtr(tax)
	rec.Total = floatPtr(total)
	rec.CreatedAt = parseTime(createdAt)
	rec.ProcessedAt = parseTime(processedAt)
	if alertsRaw != "" {
		if err := json.Unmarshal([]byte(alertsRaw), &rec.Alerts); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
