package constants

// JobStatus is the canonical status for persisted job records.
type JobStatus string

// Stable values (store these exact strings).
// Transitions are monotone: PROCESSING -> {COMPLETED, FAILED}, nothing after.
const (
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// CategorizationMethod records which strategy produced the stored category.
type CategorizationMethod string

const (
	MethodRemoteModel CategorizationMethod = "remote-model"
	MethodRuleBased   CategorizationMethod = "rule-based"
)
