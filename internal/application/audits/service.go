package audits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/auditforge/auditforge/internal/application"
	"github.com/auditforge/auditforge/internal/domain/ai"
	domain "github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/contracts"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

// Service is the orchestrator façade: submit, progress, cancel, stats.
// Safe for concurrent use.
type Service struct {
	Contracts contracts.Store
	Records   domain.RecordStore
	Queue     domain.JobStore
	Hub       domain.ProgressHub
	Clock     application.Clock
}

// SubmitRequest is the command to start an audit
type SubmitRequest struct {
	ContractID  string
	RequesterID string
	Kind        domain.Kind
	Priority    domain.Priority
	Options     *ai.Options
}

type SubmitResult struct {
	JobID   string `json:"job_id"`
	AuditID string `json:"audit_id"`
}

// Submit validates the contract reference and ownership, creates the
// durable audit record in pending state synchronously, then enqueues the
// job. A progress query issued right after Submit returns always resolves.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if !req.Kind.Valid() {
		return SubmitResult{}, ErrInvalidKind
	}

	contract, err := s.Contracts.Get(ctx, req.ContractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubmitResult{}, ErrContractNotFound
		}
		return SubmitResult{}, fmt.Errorf("load contract: %w", err)
	}
	if contract.OwnerID != req.RequesterID {
		return SubmitResult{}, ErrAccessDenied
	}

	auditID, err := s.Records.Create(ctx, req.ContractID, req.RequesterID, req.Kind)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrAuditCreate, err)
	}

	priority := req.Priority
	if priority == 0 {
		priority = domain.PriorityNormal
	}
	opts := ai.Defaults()
	if req.Options != nil {
		opts = req.Options.WithDefaults()
	}

	job := &domain.AuditJob{
		ID:          uuid.New().String(),
		AuditID:     auditID,
		ContractID:  req.ContractID,
		RequesterID: req.RequesterID,
		Kind:        req.Kind,
		Priority:    priority,
		Payload: domain.Payload{
			ContractName: contract.Name,
			SourceCode:   contract.SourceCode,
			Options:      opts,
		},
		SubmittedAt: s.Clock.Now(),
	}
	// the queued event goes out before the job becomes dequeueable, so a
	// worker that grabs it immediately can never have its first event
	// reordered ahead of this one
	s.Hub.Publish(req.RequesterID, domain.AuditProgress{
		AuditID:     auditID,
		Status:      domain.StatusQueued,
		Progress:    0,
		CurrentStep: "queued",
	})
	if err := s.Queue.Enqueue(ctx, job); err != nil {
		// audit row exists but will never run; close it out
		if ferr := s.Records.Fail(ctx, auditID, "enqueue failed: "+err.Error()); ferr != nil {
			log.Printf("facade: mark unqueued audit failed audit=%s: %v", auditID, ferr)
		}
		s.Hub.Publish(req.RequesterID, domain.AuditProgress{
			AuditID:     auditID,
			Status:      domain.StatusFailed,
			CurrentStep: "failed",
			Error:       "enqueue failed: " + err.Error(),
		})
		return SubmitResult{}, fmt.Errorf("enqueue job: %w", err)
	}
	return SubmitResult{JobID: job.ID, AuditID: auditID}, nil
}

// Progress derives the audit's progress from the live event stream when the
// job is in flight and falls back to the persisted record otherwise, which
// covers jobs finished long ago and restarts that emptied the queue.
func (s *Service) Progress(ctx context.Context, auditID, requesterID string) (domain.AuditProgress, error) {
	rec, err := s.getOwned(ctx, auditID, requesterID)
	if err != nil {
		return domain.AuditProgress{}, err
	}
	if p, ok := s.Hub.Latest(auditID); ok {
		return p, nil
	}
	return progressFromRecord(rec), nil
}

// Cancel stops a Waiting job immediately; an Active job is flagged and the
// pipeline finalizes it at its next checkpoint. Cancelling an audit that
// already reached a terminal state returns ErrAlreadyTerminal.
func (s *Service) Cancel(ctx context.Context, auditID, requesterID string) error {
	rec, err := s.getOwned(ctx, auditID, requesterID)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return ErrAlreadyTerminal
	}

	was, ok := s.Queue.CancelByAudit(auditID)
	if !ok {
		if was.Terminal() {
			// the job finished between the ownership read and the cancel
			return ErrAlreadyTerminal
		}
		// no live job (e.g. the queue was lost in a restart): the record is
		// non-terminal, close it out directly
		was = domain.StateWaiting
	}
	if was == domain.StateActive {
		// pipeline observes the flag at its next stage boundary
		return nil
	}
	if err := s.Records.UpdateStatus(ctx, auditID, domain.StatusCancelled); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}
	s.Hub.Publish(requesterID, domain.AuditProgress{
		AuditID:     auditID,
		Status:      domain.StatusCancelled,
		CurrentStep: "cancelled",
	})
	return nil
}

// Stats reports queue depth and cumulative terminal counts.
func (s *Service) Stats(_ context.Context) domain.QueueStats {
	return s.Queue.Stats()
}

// Vulnerabilities lists the canonical findings of a finished audit.
func (s *Service) Vulnerabilities(ctx context.Context, auditID, requesterID string) ([]vulns.Vulnerability, error) {
	if _, err := s.getOwned(ctx, auditID, requesterID); err != nil {
		return nil, err
	}
	return s.Records.Vulnerabilities(ctx, auditID)
}

// Record returns the owned audit record.
func (s *Service) Record(ctx context.Context, auditID, requesterID string) (*domain.Record, error) {
	return s.getOwned(ctx, auditID, requesterID)
}

func (s *Service) getOwned(ctx context.Context, auditID, requesterID string) (*domain.Record, error) {
	rec, err := s.Records.Get(ctx, auditID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load audit: %w", err)
	}
	if rec.RequesterID != requesterID {
		return nil, ErrAccessDenied
	}
	return rec, nil
}

func progressFromRecord(rec *domain.Record) domain.AuditProgress {
	p := domain.AuditProgress{AuditID: rec.ID, Error: rec.Error}
	switch rec.Status {
	case domain.StatusPending, domain.StatusQueued:
		p.Status = domain.StatusQueued
		p.CurrentStep = "queued"
	case domain.StatusProcessing:
		p.Status = domain.StatusProcessing
		p.CurrentStep = "processing"
	case domain.StatusCompleted:
		p.Status = domain.StatusCompleted
		p.Progress = 100
		p.CurrentStep = "completed"
	case domain.StatusFailed:
		p.Status = domain.StatusFailed
		p.CurrentStep = "failed"
	case domain.StatusCancelled:
		p.Status = domain.StatusCancelled
		p.CurrentStep = "cancelled"
	}
	return p
}
