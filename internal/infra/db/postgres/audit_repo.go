package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

type AuditRepository struct{ db *sql.DB }

func NewAuditRepository(db *sql.DB) *AuditRepository { return &AuditRepository{db: db} }

func (r *AuditRepository) Create(ctx context.Context, contractID, requesterID string, kind domain.Kind) (string, error) {
	const q = `
INSERT INTO audit_records
(id, contract_id, requester_id, kind, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	id := uuid.New().String()
	requester := requesterID
	if strings.TrimSpace(requester) == "" {
		requester = "-"
	}
	_, err := r.db.ExecContext(ctx, q,
		id, contractID, requester, string(kind), string(domain.StatusPending), time.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AuditRepository) Get(ctx context.Context, auditID string) (*domain.Record, error) {
	const q = `
SELECT id, contract_id, requester_id, kind, status, partial_results, error,
       critical, high, medium, low, informational, findings_total,
       artifact_url, duration_ms, created_at, completed_at
FROM audit_records
WHERE id=$1 LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, auditID)

	var rec domain.Record
	var kind, status string
	var crit, hi, med, lo, info, tot int
	var completed sql.NullTime
	if err := row.Scan(
		&rec.ID, &rec.ContractID, &rec.RequesterID, &kind, &status, &rec.PartialResults, &rec.Error,
		&crit, &hi, &med, &lo, &info, &tot,
		&rec.ArtifactURL, &rec.DurationMS, &rec.CreatedAt, &completed,
	); err != nil {
		return nil, err
	}
	rec.Kind = domain.Kind(kind)
	rec.Status = domain.Status(status)
	rec.Counts = vulns.SeverityCounts{Critical: crit, High: hi, Medium: med, Low: lo, Informational: info, Total: tot}
	if completed.Valid {
		t := completed.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func (r *AuditRepository) UpdateStatus(ctx context.Context, auditID string, status domain.Status) error {
	_, err := r.db.ExecContext(ctx, `UPDATE audit_records SET status=$1 WHERE id=$2;`, string(status), auditID)
	return err
}

func (r *AuditRepository) Complete(ctx context.Context, auditID string, res domain.Completion) error {
	const q = `
UPDATE audit_records SET
 status=$1, partial_results=$2,
 critical=$3, high=$4, medium=$5, low=$6, informational=$7, findings_total=$8,
 duration_ms=$9, completed_at=$10
WHERE id=$11;`
	_, err := r.db.ExecContext(ctx, q,
		string(domain.StatusCompleted), res.PartialResults,
		res.Counts.Critical, res.Counts.High, res.Counts.Medium, res.Counts.Low, res.Counts.Informational, res.Counts.Total,
		res.DurationMS, time.Now(), auditID)
	return err
}

func (r *AuditRepository) Fail(ctx context.Context, auditID string, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE audit_records SET status=$1, error=$2, completed_at=$3 WHERE id=$4;`,
		string(domain.StatusFailed), message, time.Now(), auditID)
	return err
}

func (r *AuditRepository) SetArtifact(ctx context.Context, auditID, url string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE audit_records SET artifact_url=$1 WHERE id=$2;`, url, auditID)
	return err
}

func (r *AuditRepository) SaveVulnerabilities(ctx context.Context, auditID string, list []vulns.Vulnerability) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM audit_vulnerabilities WHERE audit_id=$1;`, auditID); err != nil {
		return err
	}
	const q = `
INSERT INTO audit_vulnerabilities
(audit_id, type, severity, title, description, location, recommendation, confidence, source)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	for _, v := range list {
		if _, err := tx.ExecContext(ctx, q,
			auditID, string(v.Type), string(v.Severity), v.Title, v.Description,
			v.Location, v.Recommendation, v.Confidence, string(v.Source),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *AuditRepository) Vulnerabilities(ctx context.Context, auditID string) ([]vulns.Vulnerability, error) {
	const q = `
SELECT type, severity, title, description, location, recommendation, confidence, source
FROM audit_vulnerabilities
WHERE audit_id=$1 ORDER BY id ASC;`
	rows, err := r.db.QueryContext(ctx, q, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vulns.Vulnerability
	for rows.Next() {
		var v vulns.Vulnerability
		var typ, sev, src string
		if err := rows.Scan(&typ, &sev, &v.Title, &v.Description, &v.Location, &v.Recommendation, &v.Confidence, &src); err != nil {
			return nil, err
		}
		v.Type = vulns.Type(typ)
		v.Severity = vulns.Severity(sev)
		v.Source = vulns.Source(src)
		out = append(out, v)
	}
	return out, rows.Err()
}
