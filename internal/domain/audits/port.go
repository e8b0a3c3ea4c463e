package audits

import (
	"context"
	"errors"

	"github.com/auditforge/auditforge/internal/domain/ai"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

// ErrStoreClosed is returned by Enqueue after the job store shut down.
var ErrStoreClosed = errors.New("job store closed")

// JobStore port: prioritized queue with atomic dequeue semantics.
type JobStore interface {
	// Enqueue never blocks; it fails only when the store is unavailable.
	Enqueue(ctx context.Context, job *AuditJob) error
	// Dequeue blocks until a Waiting job of the kind exists or ctx is done.
	// The returned job is atomically moved to Active; two concurrent calls
	// never receive the same job.
	Dequeue(ctx context.Context, kind Kind) (*AuditJob, bool)
	// MarkCompleted / MarkFailed are idempotent for the same terminal outcome.
	MarkCompleted(jobID string)
	MarkFailed(jobID string, err error)
	// MarkCancelled finalizes an Active job whose cancellation was observed.
	MarkCancelled(jobID string)
	// Cancel succeeds only while the job is Waiting or Active. A Waiting job
	// is removed immediately; an Active job only has its flag recorded and
	// the pipeline observes it at the next stage boundary.
	Cancel(jobID string) bool
	// CancelByAudit cancels the live job for an audit id, reporting the
	// state the job was in when the flag was set.
	CancelByAudit(auditID string) (JobState, bool)
	// Cancelled reports the cooperative cancellation flag for a job.
	Cancelled(jobID string) bool
	Stats() QueueStats
}

// RecordStore port: durable audit records owned by an external collaborator.
type RecordStore interface {
	Create(ctx context.Context, contractID, requesterID string, kind Kind) (string, error)
	Get(ctx context.Context, auditID string) (*Record, error)
	UpdateStatus(ctx context.Context, auditID string, status Status) error
	Complete(ctx context.Context, auditID string, res Completion) error
	Fail(ctx context.Context, auditID string, message string) error
	SetArtifact(ctx context.Context, auditID, url string) error
	SaveVulnerabilities(ctx context.Context, auditID string, list []vulns.Vulnerability) error
	Vulnerabilities(ctx context.Context, auditID string) ([]vulns.Vulnerability, error)
}

// Completion carries the terminal fields written on success
type Completion struct {
	Counts         vulns.SeverityCounts
	PartialResults bool
	DurationMS     int64
}

// StaticAnalyzer port. Timeouts and tool failures surface as an
// unsuccessful result, never as a hang.
type StaticAnalyzer interface {
	Analyze(ctx context.Context, sourceCode, contractName string) vulns.AnalysisResult
}

// AIAnalyzer port
type AIAnalyzer interface {
	Analyze(ctx context.Context, sourceCode, contractName string, opts ai.Options) vulns.AnalysisResult
}

// ReportPaths are local artifacts produced by the report generator
type ReportPaths struct {
	HTMLPath string
	JSONPath string
}

// ReportGenerator port — best-effort, failure never fails the owning job.
type ReportGenerator interface {
	Generate(ctx context.Context, rec *Record, list []vulns.Vulnerability) (ReportPaths, error)
}

// CompletionNotifier port — best-effort delivery.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, rec *Record, counts vulns.SeverityCounts) error
	NotifyFailure(ctx context.Context, rec *Record, reason string) error
}

// ArchiveStore port for content archival of report bundles.
type ArchiveStore interface {
	UploadAndCleanup(ctx context.Context, localPath, key string) (string, error)
}

// Publisher fans progress events out to subscribers. Publish must not block
// on slow subscribers.
type Publisher interface {
	Publish(requesterID string, p AuditProgress)
}

// ProgressHub extends Publisher with the derived latest-event view the
// façade uses to answer progress queries for in-flight jobs.
type ProgressHub interface {
	Publisher
	Latest(auditID string) (AuditProgress, bool)
}
