package notify

import (
	"context"
	"log"

	domain "github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

// LogNotifier is the default CompletionNotifier. Delivery channels (email,
// webhooks) plug in behind the same port; the pipeline treats them all as
// best-effort.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (LogNotifier) NotifyCompletion(_ context.Context, rec *domain.Record, counts vulns.SeverityCounts) error {
	log.Printf("audit completed: audit=%s requester=%s kind=%s findings=%d critical=%d high=%d partial=%t",
		rec.ID, rec.RequesterID, rec.Kind, counts.Total, counts.Critical, counts.High, rec.PartialResults)
	return nil
}

func (LogNotifier) NotifyFailure(_ context.Context, rec *domain.Record, reason string) error {
	log.Printf("audit failed: audit=%s requester=%s kind=%s reason=%s",
		rec.ID, rec.RequesterID, rec.Kind, reason)
	return nil
}
