package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditforge/auditforge/internal/domain/ai"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

func TestParseFindings(t *testing.T) {
	raw := `{"contract": "Vault", "findings": [{"type": "reentrancy", "severity": "high", "description": "d", "location": "Vault.sol:1", "confidence": 0.8, "recommendation": "r"}]}`

	t.Run("plain json", func(t *testing.T) {
		got, err := ParseFindings(raw)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "reentrancy", got[0].Type)
		assert.Equal(t, 0.8, got[0].Confidence)
	})

	t.Run("fenced json", func(t *testing.T) {
		got, err := ParseFindings("```json\n" + raw + "\n```")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("bare fence", func(t *testing.T) {
		got, err := ParseFindings("```\n" + raw + "\n```")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("no findings", func(t *testing.T) {
		got, err := ParseFindings(`{"contract": "Vault", "findings": []}`)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("prose is an error", func(t *testing.T) {
		_, err := ParseFindings("I found no issues.")
		assert.Error(t, err)
	})
}

func TestGetUserPrompt(t *testing.T) {
	opts := ai.Options{
		FocusAreas:             []string{"reentrancy", "access control"},
		SeverityThreshold:      vulns.SeverityMedium,
		IncludeRecommendations: true,
		IncludeQualityMetrics:  true,
	}
	p := GetUserPrompt("Vault", "contract Vault {}", opts)

	assert.Contains(t, p, `"Vault"`)
	assert.Contains(t, p, "reentrancy, access control")
	assert.Contains(t, p, "severity medium or above")
	assert.Contains(t, p, "quality object with")
	assert.Contains(t, p, "contract Vault {}")

	assert.NotContains(t, p, "Omit the recommendation field")

	noRec := GetUserPrompt("Vault", "contract Vault {}", ai.Options{})
	assert.Contains(t, noRec, "Omit the recommendation field")
	assert.Contains(t, noRec, "Omit the quality object")
}
