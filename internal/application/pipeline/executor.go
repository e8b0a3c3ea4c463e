package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/auditforge/auditforge/internal/application"
	domain "github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/vulns"
	"github.com/auditforge/auditforge/internal/middleware"
)

// Progress milestones per phase. Values only ever increase within one job
// and reach 100 exclusively on completion.
const (
	progressAnalyzing   = 10
	progressAggregating = 70
	progressPersisting  = 90
	progressReporting   = 95
	progressNotifying   = 98
	progressDone        = 100
)

// Executor drives dequeued jobs through analysis, aggregation, persistence
// and the best-effort downstream steps. One worker runs one job start to
// finish; stages within a job never overlap.
type Executor struct {
	Queue   domain.JobStore
	Records domain.RecordStore
	Static  domain.StaticAnalyzer
	AI      domain.AIAnalyzer
	Reports domain.ReportGenerator
	Notify  domain.CompletionNotifier
	Archive domain.ArchiveStore
	Hub     domain.Publisher
	Clock   application.Clock

	// Workers configures pool size per job kind.
	Workers map[domain.Kind]int

	wg sync.WaitGroup
}

// Start spawns the per-kind worker pools. Each worker is a single consumer
// loop: dequeue, run to a terminal state, loop.
func (e *Executor) Start(ctx context.Context) {
	for _, kind := range domain.Kinds {
		n := e.Workers[kind]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			e.wg.Add(1)
			go func(kind domain.Kind) {
				defer e.wg.Done()
				for {
					job, ok := e.Queue.Dequeue(ctx, kind)
					if !ok {
						return
					}
					e.Execute(ctx, job)
				}
			}(kind)
		}
	}
}

// Stop waits for the workers to drain. Callers cancel the Start context
// first.
func (e *Executor) Stop() {
	e.wg.Wait()
}

// Execute runs one job to a terminal state. Analyzer failures terminate the
// job; report, notification and archival failures are logged and swallowed.
func (e *Executor) Execute(ctx context.Context, job *domain.AuditJob) {
	middleware.IncrementAudits()
	middleware.IncrementAuditsRunning()
	defer middleware.DecrementAuditsRunning()

	start := e.Clock.Now()

	if e.checkCancelled(ctx, job, 0) {
		return
	}
	e.publish(job, progressAnalyzing, analyzingStep(job.Kind))
	if err := e.Records.UpdateStatus(ctx, job.AuditID, domain.StatusProcessing); err != nil {
		log.Printf("pipeline: update status processing audit=%s: %v", job.AuditID, err)
	}

	list, partial, failMsg := e.analyze(ctx, job)
	if failMsg != "" {
		e.fail(ctx, job, progressAnalyzing, failMsg)
		return
	}
	if e.checkCancelled(ctx, job, progressAnalyzing) {
		return
	}

	e.publish(job, progressAggregating, "aggregating findings")
	counts := vulns.Summarize(list)

	if e.checkCancelled(ctx, job, progressAggregating) {
		return
	}
	e.publish(job, progressPersisting, "persisting results")
	if err := e.Records.SaveVulnerabilities(ctx, job.AuditID, list); err != nil {
		e.fail(ctx, job, progressPersisting, fmt.Sprintf("persist vulnerabilities: %v", err))
		return
	}
	completion := domain.Completion{
		Counts:         counts,
		PartialResults: partial,
		DurationMS:     e.Clock.Now().Sub(start).Milliseconds(),
	}
	if err := e.Records.Complete(ctx, job.AuditID, completion); err != nil {
		e.fail(ctx, job, progressPersisting, fmt.Sprintf("persist completion: %v", err))
		return
	}

	rec, err := e.Records.Get(ctx, job.AuditID)
	if err != nil {
		// terminal state is already persisted; degrade to a minimal record
		log.Printf("pipeline: reload record audit=%s: %v", job.AuditID, err)
		rec = &domain.Record{
			ID:             job.AuditID,
			ContractID:     job.ContractID,
			RequesterID:    job.RequesterID,
			Kind:           job.Kind,
			Status:         domain.StatusCompleted,
			PartialResults: partial,
			Counts:         counts,
		}
	}
	rec.ContractName = job.Payload.ContractName

	e.publish(job, progressReporting, "generating report")
	e.generateReport(ctx, job, rec, list)

	e.publish(job, progressNotifying, "sending notifications")
	if err := e.Notify.NotifyCompletion(ctx, rec, counts); err != nil {
		log.Printf("pipeline: completion notification audit=%s: %v", job.AuditID, err)
	}

	e.Queue.MarkCompleted(job.ID)
	e.Hub.Publish(job.RequesterID, domain.AuditProgress{
		AuditID:     job.AuditID,
		Status:      domain.StatusCompleted,
		Progress:    progressDone,
		CurrentStep: "completed",
	})
}

// analyze dispatches on job kind. It returns the canonical vulnerability
// set, whether results are partial (Full with one analyzer down), and a
// non-empty failure message when the job must fail.
func (e *Executor) analyze(ctx context.Context, job *domain.AuditJob) ([]vulns.Vulnerability, bool, string) {
	switch job.Kind {
	case domain.KindStatic:
		res := e.Static.Analyze(ctx, job.Payload.SourceCode, job.Payload.ContractName)
		if !res.Success {
			return nil, false, joinErrors("static analysis", res.Errors)
		}
		return vulns.Canonicalize(res.Findings, vulns.SourceStatic), false, ""

	case domain.KindAI:
		res := e.AI.Analyze(ctx, job.Payload.SourceCode, job.Payload.ContractName, job.Payload.Options)
		if !res.Success {
			return nil, false, joinErrors("ai analysis", res.Errors)
		}
		return vulns.Canonicalize(res.Findings, vulns.SourceAI), false, ""

	case domain.KindFull:
		// sequential on purpose: the analyzers are expensive and the AI lane
		// is rate-limit sensitive
		staticRes := e.Static.Analyze(ctx, job.Payload.SourceCode, job.Payload.ContractName)
		aiRes := e.AI.Analyze(ctx, job.Payload.SourceCode, job.Payload.ContractName, job.Payload.Options)

		if !staticRes.Success && !aiRes.Success {
			msg := joinErrors("static analysis", staticRes.Errors) + "; " + joinErrors("ai analysis", aiRes.Errors)
			return nil, false, msg
		}
		merged := vulns.Merge(
			vulns.Canonicalize(staticRes.Findings, vulns.SourceStatic),
			vulns.Canonicalize(aiRes.Findings, vulns.SourceAI),
		)
		partial := !staticRes.Success || !aiRes.Success
		if partial {
			log.Printf("pipeline: full audit %s continuing with partial results (static=%t ai=%t)",
				job.AuditID, staticRes.Success, aiRes.Success)
		}
		return merged, partial, ""

	default:
		return nil, false, fmt.Sprintf("unknown job kind %q", job.Kind)
	}
}

// generateReport renders the report and, for Full audits, archives the JSON
// bundle. Both steps are best-effort.
func (e *Executor) generateReport(ctx context.Context, job *domain.AuditJob, rec *domain.Record, list []vulns.Vulnerability) {
	paths, err := e.Reports.Generate(ctx, rec, list)
	if err != nil {
		log.Printf("pipeline: report generation audit=%s: %v", job.AuditID, err)
		return
	}
	if job.Kind != domain.KindFull || e.Archive == nil || paths.JSONPath == "" {
		return
	}
	key := fmt.Sprintf("%s/%s/%s", job.RequesterID, job.AuditID, filepath.Base(paths.JSONPath))
	url, err := e.Archive.UploadAndCleanup(ctx, paths.JSONPath, key)
	if err != nil {
		log.Printf("pipeline: archive report audit=%s: %v", job.AuditID, err)
		return
	}
	if err := e.Records.SetArtifact(ctx, job.AuditID, url); err != nil {
		log.Printf("pipeline: record artifact url audit=%s: %v", job.AuditID, err)
	}
}

// checkCancelled observes the cooperative cancellation flag between stages.
// A running analyzer call is never interrupted; the flag takes effect at
// the next checkpoint.
func (e *Executor) checkCancelled(ctx context.Context, job *domain.AuditJob, at int) bool {
	if !e.Queue.Cancelled(job.ID) {
		return false
	}
	middleware.IncrementAuditsCancelled()
	if err := e.Records.UpdateStatus(ctx, job.AuditID, domain.StatusCancelled); err != nil {
		log.Printf("pipeline: persist cancellation audit=%s: %v", job.AuditID, err)
	}
	e.Queue.MarkCancelled(job.ID)
	e.Hub.Publish(job.RequesterID, domain.AuditProgress{
		AuditID:     job.AuditID,
		Status:      domain.StatusCancelled,
		Progress:    at,
		CurrentStep: "cancelled",
	})
	return true
}

// fail persists the terminal failure before the final event goes out so a
// progress query is never ahead of the durable record.
func (e *Executor) fail(ctx context.Context, job *domain.AuditJob, at int, msg string) {
	middleware.IncrementAuditsFailed()
	if err := e.Records.Fail(ctx, job.AuditID, msg); err != nil {
		log.Printf("pipeline: persist failure audit=%s: %v", job.AuditID, err)
	}
	e.Queue.MarkFailed(job.ID, fmt.Errorf("%s", msg))

	if rec, err := e.Records.Get(ctx, job.AuditID); err == nil {
		if nerr := e.Notify.NotifyFailure(ctx, rec, msg); nerr != nil {
			log.Printf("pipeline: failure notification audit=%s: %v", job.AuditID, nerr)
		}
	}

	e.Hub.Publish(job.RequesterID, domain.AuditProgress{
		AuditID:     job.AuditID,
		Status:      domain.StatusFailed,
		Progress:    at,
		CurrentStep: "failed",
		Error:       msg,
	})
}

func (e *Executor) publish(job *domain.AuditJob, progress int, step string) {
	e.Hub.Publish(job.RequesterID, domain.AuditProgress{
		AuditID:     job.AuditID,
		Status:      domain.StatusProcessing,
		Progress:    progress,
		CurrentStep: step,
	})
}

func analyzingStep(kind domain.Kind) string {
	switch kind {
	case domain.KindStatic:
		return "running static analysis"
	case domain.KindAI:
		return "running ai analysis"
	default:
		return "running static and ai analysis"
	}
}

func joinErrors(stage string, errs []string) string {
	if len(errs) == 0 {
		return stage + " failed"
	}
	return stage + " failed: " + strings.Join(errs, "; ")
}
