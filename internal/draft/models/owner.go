package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "bizreg/pkg/domain-errors"
)

// Owner is one listed owner of the entity. Percentage is null until entered.
type Owner struct {
	FullName   string
	Percentage decimal.NullDecimal
}

// OwnerInput is an owner as typed by the user, before numeric parsing.
type OwnerInput struct {
	FullName   string
	Percentage string
}

// ParsePercentage parses an ownership percentage. Empty input is a null
// percentage, not an error; non-numeric or negative input is rejected.
func ParsePercentage(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("not a number: %q", raw)
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("must not be negative")
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// ParseOwners converts user input into owners, naming the first malformed entry.
func ParseOwners(inputs []OwnerInput) ([]Owner, error) {
	owners := make([]Owner, 0, len(inputs))
	for i, in := range inputs {
		pct, err := ParsePercentage(in.Percentage)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("owners[%d].percentage %s", i, err.Error()))
		}
		owners = append(owners, Owner{FullName: strings.TrimSpace(in.FullName), Percentage: pct})
	}
	return owners, nil
}

// OwnerInputs renders stored owners back into input form.
func OwnerInputs(owners []Owner) []OwnerInput {
	out := make([]OwnerInput, 0, len(owners))
	for _, o := range owners {
		in := OwnerInput{FullName: o.FullName}
		if o.Percentage.Valid {
			in.Percentage = o.Percentage.Decimal.String()
		}
		out = append(out, in)
	}
	return out
}
