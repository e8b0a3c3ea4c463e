package report

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

func TestGenerate(t *testing.T) {
	g := NewGenerator(t.TempDir())
	rec := &domain.Record{
		ID:          "audit-1",
		ContractID:  "c1",
		RequesterID: "alice",
		Kind:        domain.KindFull,
		Status:      domain.StatusCompleted,
	}
	findings := []vulns.Vulnerability{
		{
			Type:           vulns.TypeReentrancy,
			Severity:       vulns.SeverityHigh,
			Title:          "High: Reentrancy vulnerability",
			Description:    "external call before state update",
			Location:       "Vault.sol:42",
			Recommendation: "use checks-effects-interactions",
			Confidence:     0.9,
			Source:         vulns.SourceStatic,
		},
	}

	paths, err := g.Generate(context.Background(), rec, findings)
	require.NoError(t, err)

	jsonBody, err := os.ReadFile(paths.JSONPath)
	require.NoError(t, err)
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(jsonBody, &payload))
	assert.Contains(t, payload, "audit")
	assert.Contains(t, payload, "counts")
	assert.Contains(t, payload, "findings")

	htmlBody, err := os.ReadFile(paths.HTMLPath)
	require.NoError(t, err)
	html := string(htmlBody)
	assert.Contains(t, html, "audit-1")
	assert.Contains(t, html, "High: Reentrancy vulnerability")
	assert.Contains(t, html, "Vault.sol:42")
}

func TestGenerateEmptyFindings(t *testing.T) {
	g := NewGenerator(t.TempDir())
	rec := &domain.Record{ID: "audit-2", ContractID: "c1", Kind: domain.KindStatic, Status: domain.StatusCompleted}

	paths, err := g.Generate(context.Background(), rec, nil)
	require.NoError(t, err)

	htmlBody, err := os.ReadFile(paths.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(htmlBody), "No findings.")
}

func TestGenerateEscapesSource(t *testing.T) {
	g := NewGenerator(t.TempDir())
	rec := &domain.Record{ID: "audit-3", ContractID: "c1", Kind: domain.KindAI, Status: domain.StatusCompleted}
	findings := []vulns.Vulnerability{
		{Severity: vulns.SeverityLow, Title: "x", Description: `<script>alert("xss")</script>`},
	}

	paths, err := g.Generate(context.Background(), rec, findings)
	require.NoError(t, err)

	htmlBody, err := os.ReadFile(paths.HTMLPath)
	require.NoError(t, err)
	assert.NotContains(t, string(htmlBody), "<script>alert")
}
