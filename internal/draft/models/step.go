package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "bizreg/pkg/domain-errors"
)

// Step is a wizard position, 1 through 6.
type Step int

const (
	StepJurisdiction Step = iota + 1
	StepNaming
	StepOwnership
	StepAddress
	StepDocuments
	StepReview
)

const (
	FirstStep = StepJurisdiction
	LastStep  = StepReview
)

var stepNames = map[Step]string{
	StepJurisdiction: "jurisdiction",
	StepNaming:       "naming",
	StepOwnership:    "ownership",
	StepAddress:      "address",
	StepDocuments:    "documents",
	StepReview:       "review",
}

func (s Step) IsValid() bool {
	return s >= FirstStep && s <= LastStep
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// percentageTolerance is how far the ownership total may drift from 100.
var (
	percentageTolerance = decimal.RequireFromString("0.01")
	fullOwnership       = decimal.NewFromInt(100)
)

// GateView is the subset of draft state that step gates inspect. The wizard
// and the upsert service both build one so they report identical errors.
type GateView struct {
	Jurisdiction   string
	EntityName     string
	EntityCategory string
	Owners         []OwnerInput
	Address        Address
	HasPrimary     bool
}

// CheckStep returns a validation error naming the first unmet condition of
// step's gate, or nil when the gate passes.
func CheckStep(step Step, v GateView) error {
	switch step {
	case StepJurisdiction:
		if blank(v.Jurisdiction) {
			return gateErr("jurisdiction must be selected")
		}
	case StepNaming:
		if blank(v.EntityName) {
			return gateErr("entity name is required")
		}
		if blank(v.EntityCategory) {
			return gateErr("entity category must be selected")
		}
	case StepOwnership:
		return checkOwnership(v.Owners)
	case StepAddress:
		switch {
		case blank(v.Address.Street):
			return gateErr("address street is required")
		case blank(v.Address.City):
			return gateErr("address city is required")
		case blank(v.Address.Region):
			return gateErr("address region is required")
		case blank(v.Address.PostalCode):
			return gateErr("address postal code is required")
		}
	case StepDocuments:
		if !v.HasPrimary {
			return gateErr("primary identification document is required")
		}
	case StepReview:
		return nil
	default:
		return gateErr(fmt.Sprintf("unknown step %d", int(step)))
	}
	return nil
}

// CheckStepsBefore checks every gate strictly before step.
func CheckStepsBefore(step Step, v GateView) error {
	for s := FirstStep; s < step && s <= LastStep; s++ {
		if err := CheckStep(s, v); err != nil {
			return err
		}
	}
	return nil
}

func checkOwnership(owners []OwnerInput) error {
	if len(owners) == 0 {
		return gateErr("at least one owner is required")
	}
	total := decimal.Zero
	for i, o := range owners {
		if blank(o.FullName) {
			return gateErr(fmt.Sprintf("owners[%d].full name is required", i))
		}
		if blank(o.Percentage) {
			return gateErr(fmt.Sprintf("owners[%d].percentage is required", i))
		}
		pct, err := ParsePercentage(o.Percentage)
		if err != nil {
			return gateErr(fmt.Sprintf("owners[%d].percentage %s", i, err.Error()))
		}
		total = total.Add(pct.Decimal)
	}
	if total.Sub(fullOwnership).Abs().GreaterThan(percentageTolerance) {
		return gateErr(fmt.Sprintf("ownership percentages must total 100 (got %s)", total.String()))
	}
	return nil
}

func gateErr(msg string) error {
	return dErrors.New(dErrors.CodeValidation, msg)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
