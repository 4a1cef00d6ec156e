package enums

import "fmt"

// PlanDuration describes how a plan bills.
type PlanDuration string

const (
	PlanDurationMonthly PlanDuration = "monthly"
	PlanDurationYearly  PlanDuration = "yearly"
	PlanDurationTrial   PlanDuration = "trial"
)

var validPlanDurations = []PlanDuration{
	PlanDurationMonthly,
	PlanDurationYearly,
	PlanDurationTrial,
}

// String implements fmt.Stringer.
func (p PlanDuration) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PlanDuration) IsValid() bool {
	for _, candidate := range validPlanDurations {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanDuration converts raw input into a PlanDuration.
func ParsePlanDuration(value string) (PlanDuration, error) {
	for _, candidate := range validPlanDurations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan duration %q", value)
}
