package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCoerceFee(t *testing.T) {
	zeroCases := []string{"", "   ", "abc", "-5", "1e", "NaN"}
	for _, raw := range zeroCases {
		assert.True(t, CoerceFee(raw).IsZero(), "input %q", raw)
	}

	valid := map[string]string{
		"100":   "100",
		"12.5":  "12.5",
		" 0.75": "0.75",
		"0":     "0",
	}
	for raw, want := range valid {
		assert.True(t, decimal.RequireFromString(want).Equal(CoerceFee(raw)), "input %q", raw)
	}
}
