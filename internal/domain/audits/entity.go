package audits

import (
	"time"

	"github.com/auditforge/auditforge/internal/domain/ai"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

// Kind decides which analyzer(s) a job runs
type Kind string

const (
	KindStatic Kind = "static"
	KindAI     Kind = "ai"
	KindFull   Kind = "full"
)

// Kinds lists every valid job kind; worker pools are sized per kind.
var Kinds = []Kind{KindStatic, KindAI, KindFull}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindStatic, KindAI, KindFull:
		return true
	}
	return false
}

// Priority orders jobs in the queue; higher dequeues first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 15
)

// JobState is the queue-side lifecycle of a job
type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Payload carries everything an analyzer needs to run
type Payload struct {
	ContractName string     `json:"contract_name"`
	SourceCode   string     `json:"source_code"`
	Options      ai.Options `json:"options"`
}

// AuditJob is one unit of requested analysis. The job store owns the
// canonical copy; the pipeline borrows it for execution and must not touch
// ID, Kind or Priority.
type AuditJob struct {
	ID          string    `json:"id"`
	AuditID     string    `json:"audit_id"`
	ContractID  string    `json:"contract_id"`
	RequesterID string    `json:"requester_id"`
	Kind        Kind      `json:"kind"`
	Priority    Priority  `json:"priority"`
	Payload     Payload   `json:"payload"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Status is the externally visible audit status
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further progress events.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// AuditProgress is a derived view of a job's execution state. Progress is
// monotonically non-decreasing within one job's lifetime and reaches 100
// only on completion.
type AuditProgress struct {
	AuditID     string `json:"audit_id"`
	Status      Status `json:"status"`
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
	Error       string `json:"error,omitempty"`
}

// QueueStats is computed on demand, never persisted. Waiting and Active are
// live counts; the terminal buckets are cumulative since startup.
type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Record is the durable audit row
type Record struct {
	ID             string               `json:"id"`
	ContractID     string               `json:"contract_id"`
	ContractName   string               `json:"contract_name,omitempty"`
	RequesterID    string               `json:"requester_id"`
	Kind           Kind                 `json:"kind"`
	Status         Status               `json:"status"`
	PartialResults bool                 `json:"partial_results,omitempty"`
	Error          string               `json:"error,omitempty"`
	Counts         vulns.SeverityCounts `json:"counts"`
	ArtifactURL    string               `json:"artifact_url,omitempty"`
	DurationMS     int64                `json:"duration_ms"`
	CreatedAt      time.Time            `json:"created_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
}
