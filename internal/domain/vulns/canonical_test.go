package vulns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalType(t *testing.T) {
	cases := map[string]Type{
		"reentrancy-eth":               TypeReentrancy,
		"Reentrancy":                   TypeReentrancy,
		"integer_overflow":             TypeOverflow,
		"ARITHMETIC":                   TypeOverflow,
		"tx-origin":                    TypeAccessControl,
		"access control":               TypeAccessControl,
		"costly-loop":                  TypeGasOptimization,
		"naming-convention":            TypeBestPractice,
		"some-unknown-detector":        TypeBestPractice,
		"":                             TypeBestPractice,
		"  controlled-delegatecall  ": TypeAccessControl,
	}
	for raw, want := range cases {
		assert.Equal(t, want, CanonicalType(raw), "raw=%q", raw)
	}
}

func TestCanonicalSeverity(t *testing.T) {
	cases := map[string]Severity{
		"critical": SeverityCritical,
		"High":     SeverityHigh,
		"moderate": SeverityMedium,
		"minor":    SeverityLow,
		"info":     SeverityInformational,
		"note":     SeverityInformational,
		"whatever": SeverityMedium,
		"":         SeverityMedium,
	}
	for raw, want := range cases {
		assert.Equal(t, want, CanonicalSeverity(raw), "raw=%q", raw)
	}
}

func TestCanonicalize(t *testing.T) {
	t.Run("deterministic titles and recommendations", func(t *testing.T) {
		raw := []RawFinding{
			{Type: "reentrancy-eth", Severity: "high", Description: "call before state update", Location: "Vault.sol:42", Confidence: 0.9},
			{Type: "unheard-of", Severity: "bogus", Description: "???", Location: "Vault.sol:7"},
		}
		got := Canonicalize(raw, SourceStatic)
		require.Len(t, got, 2)

		assert.Equal(t, TypeReentrancy, got[0].Type)
		assert.Equal(t, SeverityHigh, got[0].Severity)
		assert.Equal(t, "High: Reentrancy vulnerability", got[0].Title)
		assert.Equal(t, RecommendationFor(TypeReentrancy), got[0].Recommendation)
		assert.Equal(t, SourceStatic, got[0].Source)
		assert.Equal(t, "call before state update", got[0].Description)

		// unknowns fold into best_practice at medium, never dropped
		assert.Equal(t, TypeBestPractice, got[1].Type)
		assert.Equal(t, SeverityMedium, got[1].Severity)
	})

	t.Run("confidence clamped into (0,1]", func(t *testing.T) {
		got := Canonicalize([]RawFinding{
			{Type: "overflow", Severity: "low", Confidence: 0},
			{Type: "overflow", Severity: "low", Confidence: -2},
			{Type: "overflow", Severity: "low", Confidence: 3.5},
			{Type: "overflow", Severity: "low", Confidence: 0.25},
		}, SourceAI)
		require.Len(t, got, 4)
		assert.Equal(t, 0.5, got[0].Confidence)
		assert.Equal(t, 0.5, got[1].Confidence)
		assert.Equal(t, 1.0, got[2].Confidence)
		assert.Equal(t, 0.25, got[3].Confidence)
	})

	t.Run("empty input yields empty non-nil slice", func(t *testing.T) {
		got := Canonicalize(nil, SourceStatic)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestMerge(t *testing.T) {
	a := Canonicalize([]RawFinding{{Type: "reentrancy", Severity: "high"}}, SourceStatic)
	b := Canonicalize([]RawFinding{{Type: "reentrancy", Severity: "high"}}, SourceAI)

	merged := Merge(a, b)
	// overlap is preserved from both sources, no dedup
	require.Len(t, merged, 2)
	assert.Equal(t, SourceStatic, merged[0].Source)
	assert.Equal(t, SourceAI, merged[1].Source)

	assert.Empty(t, Merge(nil, nil))
}

func TestSummarize(t *testing.T) {
	list := []Vulnerability{
		{Severity: SeverityCritical},
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
		{Severity: SeverityInformational},
	}
	c := Summarize(list)
	assert.Equal(t, 1, c.Critical)
	assert.Equal(t, 2, c.High)
	assert.Equal(t, 1, c.Medium)
	assert.Equal(t, 1, c.Low)
	assert.Equal(t, 1, c.Informational)
	assert.Equal(t, 6, c.Total)

	assert.Zero(t, Summarize(nil))
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityLow))
	assert.True(t, SeverityMedium.AtLeast(SeverityMedium))
	assert.False(t, SeverityInformational.AtLeast(SeverityLow))
}
