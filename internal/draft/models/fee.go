package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CoerceFee resolves a jurisdiction fee to a non-negative number. Empty,
// unparseable and negative input become zero rather than failing the request.
func CoerceFee(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
