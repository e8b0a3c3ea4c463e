package middleware

import (
	"fmt"
	"strings"
)

// Input validation for audit submissions

// ValidateKind checks if the analysis kind is in the allowed list
func ValidateKind(kind string) error {
	allowed := map[string]bool{
		"static": true,
		"ai":     true,
		"full":   true,
	}

	if !allowed[strings.ToLower(kind)] {
		return fmt.Errorf("invalid kind: %s (allowed: static, ai, full)", kind)
	}
	return nil
}

// ValidatePriority checks the priority band
func ValidatePriority(priority int) error {
	switch priority {
	case 0, 1, 5, 10, 15:
		return nil
	}
	return fmt.Errorf("invalid priority: %d (allowed: 1, 5, 10, 15)", priority)
}

// ValidateContractID rejects ids with characters that could leak into
// queries or object keys
func ValidateContractID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("contract_id cannot be empty")
	}
	if len(id) > 64 {
		return fmt.Errorf("contract_id too long")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("invalid characters in contract_id")
		}
	}
	return nil
}

// ValidateFocusAreas bounds the free-text focus list sent to the AI models
func ValidateFocusAreas(areas []string) error {
	if len(areas) > 10 {
		return fmt.Errorf("too many focus areas (max 10)")
	}
	dangerous := []string{"$(", "`", "\n", "\r"}
	for _, a := range areas {
		if len(a) > 64 {
			return fmt.Errorf("focus area too long")
		}
		for _, d := range dangerous {
			if strings.Contains(a, d) {
				return fmt.Errorf("invalid characters in focus area")
			}
		}
	}
	return nil
}

// ValidateConfidence bounds the minimum confidence option
func ValidateConfidence(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("min_confidence must be between 0 and 1")
	}
	return nil
}
