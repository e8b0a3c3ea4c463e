package ai

import "github.com/auditforge/auditforge/internal/domain/vulns"

// Options tune a single AI analysis run. Zero values are resolved by
// WithDefaults before the adapter sees them.
type Options struct {
	FocusAreas             []string       `json:"focus_areas,omitempty"`
	SeverityThreshold      vulns.Severity `json:"severity_threshold,omitempty"`
	MinConfidence          float64        `json:"min_confidence,omitempty"`
	IncludeRecommendations bool           `json:"include_recommendations"`
	IncludeQualityMetrics  bool           `json:"include_quality_metrics"`
}

// DefaultFocusAreas steer the models toward the canonical taxonomy.
var DefaultFocusAreas = []string{
	"reentrancy",
	"access control",
	"arithmetic overflow",
	"gas optimization",
}

// WithDefaults fills unset fields. Boolean flags are left as provided;
// callers that want the defaults use Defaults().
func (o Options) WithDefaults() Options {
	if len(o.FocusAreas) == 0 {
		o.FocusAreas = DefaultFocusAreas
	}
	if o.SeverityThreshold == "" {
		o.SeverityThreshold = vulns.SeverityInformational
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = 0.5
	}
	return o
}

// Defaults returns the options used when a request carries none.
func Defaults() Options {
	return Options{
		IncludeRecommendations: true,
	}.WithDefaults()
}
