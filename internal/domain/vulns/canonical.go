package vulns

import "strings"

// typeAliases maps raw analyzer-specific type strings (normalized to
// lowercase with hyphens) onto the canonical taxonomy. Slither detector
// names and the labels the AI models emit both funnel through here.
var typeAliases = map[string]Type{
	"reentrancy":               TypeReentrancy,
	"reentrancy-eth":           TypeReentrancy,
	"reentrancy-no-eth":        TypeReentrancy,
	"reentrancy-benign":        TypeReentrancy,
	"reentrancy-events":        TypeReentrancy,
	"reentrancy-unlimited-gas": TypeReentrancy,

	"overflow":               TypeOverflow,
	"underflow":              TypeOverflow,
	"integer-overflow":       TypeOverflow,
	"arithmetic":             TypeOverflow,
	"divide-before-multiply": TypeOverflow,
	"tautology":              TypeOverflow,

	"access-control":          TypeAccessControl,
	"unprotected-function":    TypeAccessControl,
	"unprotected-upgrade":     TypeAccessControl,
	"suicidal":                TypeAccessControl,
	"arbitrary-send":          TypeAccessControl,
	"arbitrary-send-eth":      TypeAccessControl,
	"tx-origin":               TypeAccessControl,
	"missing-zero-check":      TypeAccessControl,
	"controlled-delegatecall": TypeAccessControl,

	"gas":                             TypeGasOptimization,
	"gas-optimization":                TypeGasOptimization,
	"costly-loop":                     TypeGasOptimization,
	"costly-operations-inside-a-loop": TypeGasOptimization,
	"external-function":               TypeGasOptimization,
	"cache-array-length":              TypeGasOptimization,
	"constable-states":                TypeGasOptimization,
	"immutable-states":                TypeGasOptimization,

	"best-practice":     TypeBestPractice,
	"best-practices":    TypeBestPractice,
	"naming-convention": TypeBestPractice,
	"solc-version":      TypeBestPractice,
	"pragma":            TypeBestPractice,
	"code-quality":      TypeBestPractice,
}

var titleByType = map[Type]string{
	TypeReentrancy:      "Reentrancy vulnerability",
	TypeOverflow:        "Arithmetic overflow/underflow",
	TypeAccessControl:   "Access control weakness",
	TypeGasOptimization: "Gas optimization opportunity",
	TypeBestPractice:    "Best practice deviation",
}

var recommendationByType = map[Type]string{
	TypeReentrancy:      "Apply the checks-effects-interactions pattern and consider a reentrancy guard on state-changing external functions.",
	TypeOverflow:        "Use checked arithmetic (Solidity >=0.8) or a vetted math library, and validate operands before arithmetic on user-supplied values.",
	TypeAccessControl:   "Restrict privileged functions with explicit authorization modifiers and avoid tx.origin for authentication.",
	TypeGasOptimization: "Restructure the flagged code path to reduce storage reads/writes and loop costs.",
	TypeBestPractice:    "Review the flagged pattern against current Solidity style and security guidelines.",
}

var severityLabels = map[Severity]string{
	SeverityCritical:      "Critical",
	SeverityHigh:          "High",
	SeverityMedium:        "Medium",
	SeverityLow:           "Low",
	SeverityInformational: "Informational",
}

// CanonicalType resolves a raw analyzer type string to the taxonomy.
// Unmapped types land in best_practice rather than being dropped.
func CanonicalType(raw string) Type {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "_", "-")
	key = strings.ReplaceAll(key, " ", "-")
	if t, ok := typeAliases[key]; ok {
		return t
	}
	return TypeBestPractice
}

// CanonicalSeverity normalizes raw severity labels; anything unrecognized
// is treated as medium so it is neither hidden nor over-reported.
func CanonicalSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	case "informational", "info", "note":
		return SeverityInformational
	default:
		return SeverityMedium
	}
}

// TitleFor builds the stable display title from (type, severity).
func TitleFor(t Type, sev Severity) string {
	return severityLabels[sev] + ": " + titleByType[t]
}

// RecommendationFor returns the fixed remediation text for a canonical type.
func RecommendationFor(t Type) string {
	return recommendationByType[t]
}

// Canonicalize maps raw findings from one analyzer into canonical
// vulnerabilities. The mapping is deterministic: titles and recommendations
// come from lookup tables keyed by (type, severity), never from free text.
func Canonicalize(findings []RawFinding, source Source) []Vulnerability {
	out := make([]Vulnerability, 0, len(findings))
	for _, f := range findings {
		t := CanonicalType(f.Type)
		sev := CanonicalSeverity(f.Severity)
		conf := f.Confidence
		if conf <= 0 {
			conf = 0.5
		}
		if conf > 1 {
			conf = 1
		}
		out = append(out, Vulnerability{
			Type:           t,
			Severity:       sev,
			Title:          TitleFor(t, sev),
			Description:    f.Description,
			Location:       f.Location,
			Recommendation: RecommendationFor(t),
			Confidence:     conf,
			Source:         source,
		})
	}
	return out
}

// Merge concatenates independently canonicalized sets. No cross-analyzer
// deduplication is performed; overlapping findings from static and AI runs
// are reported from both sources.
func Merge(sets ...[]Vulnerability) []Vulnerability {
	var out []Vulnerability
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
