package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auditforge/auditforge/internal/domain/vulns"
)

func TestWithDefaults(t *testing.T) {
	t.Run("zero options resolve fully", func(t *testing.T) {
		o := Options{}.WithDefaults()
		assert.Equal(t, DefaultFocusAreas, o.FocusAreas)
		assert.Equal(t, vulns.SeverityInformational, o.SeverityThreshold)
		assert.Equal(t, 0.5, o.MinConfidence)
	})

	t.Run("set fields are preserved", func(t *testing.T) {
		o := Options{
			FocusAreas:        []string{"reentrancy"},
			SeverityThreshold: vulns.SeverityHigh,
			MinConfidence:     0.9,
		}.WithDefaults()
		assert.Equal(t, []string{"reentrancy"}, o.FocusAreas)
		assert.Equal(t, vulns.SeverityHigh, o.SeverityThreshold)
		assert.Equal(t, 0.9, o.MinConfidence)
	})
}

func TestDefaults(t *testing.T) {
	o := Defaults()
	assert.True(t, o.IncludeRecommendations)
	assert.False(t, o.IncludeQualityMetrics)
	assert.Equal(t, 0.5, o.MinConfidence)
}
