// Package notify delivers alert summaries for jobs that finished with
// anomalies. Delivery is best-effort: a failed notification never changes
// the stored job outcome.
package notify

import (
	"context"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

type Notifier interface {
	Notify(ctx context.Context, rec *entity.JobRecord) error
}
