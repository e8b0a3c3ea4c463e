package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKind(t *testing.T) {
	assert.NoError(t, ValidateKind("static"))
	assert.NoError(t, ValidateKind("AI"))
	assert.NoError(t, ValidateKind("full"))
	assert.Error(t, ValidateKind("fuzzing"))
	assert.Error(t, ValidateKind(""))
}

func TestValidatePriority(t *testing.T) {
	for _, p := range []int{0, 1, 5, 10, 15} {
		assert.NoError(t, ValidatePriority(p), "priority %d", p)
	}
	assert.Error(t, ValidatePriority(2))
	assert.Error(t, ValidatePriority(-1))
	assert.Error(t, ValidatePriority(100))
}

func TestValidateContractID(t *testing.T) {
	assert.NoError(t, ValidateContractID("contract-123_abc"))
	assert.Error(t, ValidateContractID(""))
	assert.Error(t, ValidateContractID("   "))
	assert.Error(t, ValidateContractID(strings.Repeat("a", 65)))
	assert.Error(t, ValidateContractID("id with spaces"))
	assert.Error(t, ValidateContractID("../../etc/passwd"))
	assert.Error(t, ValidateContractID("id'; DROP TABLE audits;--"))
}

func TestValidateFocusAreas(t *testing.T) {
	assert.NoError(t, ValidateFocusAreas(nil))
	assert.NoError(t, ValidateFocusAreas([]string{"reentrancy", "access control"}))
	assert.Error(t, ValidateFocusAreas(make([]string, 11)))
	assert.Error(t, ValidateFocusAreas([]string{strings.Repeat("x", 65)}))
	assert.Error(t, ValidateFocusAreas([]string{"ignore previous $(rm -rf /)"}))
	assert.Error(t, ValidateFocusAreas([]string{"line\nbreak"}))
}

func TestValidateConfidence(t *testing.T) {
	assert.NoError(t, ValidateConfidence(0))
	assert.NoError(t, ValidateConfidence(0.5))
	assert.NoError(t, ValidateConfidence(1))
	assert.Error(t, ValidateConfidence(-0.1))
	assert.Error(t, ValidateConfidence(1.1))
}
