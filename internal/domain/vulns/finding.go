package vulns

// Severity enum, lowercase on the wire
type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityHigh          Severity = "high"
	SeverityMedium        Severity = "medium"
	SeverityLow           Severity = "low"
	SeverityInformational Severity = "informational"
)

var severityRank = map[Severity]int{
	SeverityInformational: 0,
	SeverityLow:           1,
	SeverityMedium:        2,
	SeverityHigh:          3,
	SeverityCritical:      4,
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Source tags which analyzer produced a vulnerability
type Source string

const (
	SourceStatic   Source = "static"
	SourceAI       Source = "ai"
	SourceCombined Source = "combined"
)

// Type is the canonical taxonomy. Every raw finding maps to exactly one of
// these; unknown raw types fall back to TypeBestPractice.
type Type string

const (
	TypeReentrancy      Type = "reentrancy"
	TypeOverflow        Type = "overflow"
	TypeAccessControl   Type = "access_control"
	TypeGasOptimization Type = "gas_optimization"
	TypeBestPractice    Type = "best_practice"
)

// RawFinding is one untouched finding from a single analyzer
type RawFinding struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Location    string  `json:"location,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// AnalysisResult is the raw output of one analyzer invocation
type AnalysisResult struct {
	Findings   []RawFinding `json:"findings"`
	DurationMS int64        `json:"duration_ms"`
	Errors     []string     `json:"errors,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
	Success    bool         `json:"success"`
}

// Vulnerability is the canonicalized form persisted and reported
type Vulnerability struct {
	Type           Type     `json:"type"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Location       string   `json:"location,omitempty"`
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	Source         Source   `json:"source"`
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical      int `json:"critical"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
	Informational int `json:"informational"`
	Total         int `json:"total"`
}
