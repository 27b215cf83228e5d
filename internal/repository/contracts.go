package repository

import (
	"context"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// JobStore persists job records keyed by (user_id, job_id).
//
// SaveResult and MarkFailed are unconditional overwrites so redelivered
// triggers converge on the same terminal record; EnsureProcessing only
// inserts when no record exists, preserving monotone status transitions.
type JobStore interface {
	EnsureProcessing(ctx context.Context, userID, jobID string) error
	SaveResult(ctx context.Context, rec *entity.JobRecord) error
	MarkFailed(ctx context.Context, userID, jobID, errMsg string) error
	Get(ctx context.Context, userID, jobID string) (*entity.JobRecord, error)
	ListCompleted(ctx context.Context, userID string) ([]*entity.JobRecord, error)
	Close() error
}
