package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/auditforge/auditforge/internal/domain/ai"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior smart contract security auditor. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Use lowercase severity values: critical, high, medium, low, informational.
- type should be one of: reentrancy, overflow, access_control, gas_optimization, best_practice. Use the closest match.
- confidence is a number between 0 and 1 reflecting how certain you are the finding is real.
- location names the contract/function/line the finding applies to.
- Report only findings supported by the provided source code; do not invent issues.

Schema (example with empty values):
{
  "contract": "<string>",
  "findings": [
    {
      "type": "<string>",
      "severity": "<critical|high|medium|low|informational>",
      "description": "<string>",
      "location": "<string>",
      "confidence": 0.0,
      "recommendation": "<string>"
    }
  ],
  "quality": {"readability": 0, "documentation": 0, "test_coverage_hint": "<string>"}
}`
}

// GetUserPrompt builds the user message around the contract source and the
// requested analysis options.
func GetUserPrompt(contractName, sourceCode string, opts ai.Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Audit the Solidity contract %q and respond with the JSON per schema.\n", contractName)
	if len(opts.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Focus areas: %s.\n", strings.Join(opts.FocusAreas, ", "))
	}
	if opts.SeverityThreshold != "" {
		fmt.Fprintf(&b, "Only report findings of severity %s or above.\n", opts.SeverityThreshold)
	}
	if !opts.IncludeRecommendations {
		b.WriteString("Omit the recommendation field.\n")
	}
	if opts.IncludeQualityMetrics {
		b.WriteString("Include the quality object with your code quality assessment.\n")
	} else {
		b.WriteString("Omit the quality object.\n")
	}
	b.WriteString("\nSource:\n")
	b.WriteString(sourceCode)
	return b.String()
}

// auditResponse matches the schema the system prompt demands.
type auditResponse struct {
	Contract string `json:"contract"`
	Findings []struct {
		Type           string  `json:"type"`
		Severity       string  `json:"severity"`
		Description    string  `json:"description"`
		Location       string  `json:"location"`
		Confidence     float64 `json:"confidence"`
		Recommendation string  `json:"recommendation"`
	} `json:"findings"`
}

// ParseFindings decodes a model response into raw findings. Models
// occasionally wrap JSON in code fences despite instructions; tolerate that.
func ParseFindings(content string) ([]vulns.RawFinding, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var resp auditResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	out := make([]vulns.RawFinding, 0, len(resp.Findings))
	for _, f := range resp.Findings {
		out = append(out, vulns.RawFinding{
			Type:        f.Type,
			Severity:    f.Severity,
			Description: f.Description,
			Location:    f.Location,
			Confidence:  f.Confidence,
		})
	}
	return out, nil
}
