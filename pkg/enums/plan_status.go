package enums

import "fmt"

// PlanStatus tracks the lifecycle of a learner's entitlement window.
type PlanStatus string

const (
	PlanStatusPendingForPayment PlanStatus = "PENDING_FOR_PAYMENT"
	PlanStatusPending           PlanStatus = "PENDING"
	PlanStatusActive            PlanStatus = "ACTIVE"
	PlanStatusPaymentFailed     PlanStatus = "PAYMENT_FAILED"
	PlanStatusExpired           PlanStatus = "EXPIRED"
)

var validPlanStatuses = []PlanStatus{
	PlanStatusPendingForPayment,
	PlanStatusPending,
	PlanStatusActive,
	PlanStatusPaymentFailed,
	PlanStatusExpired,
}

func (p PlanStatus) String() string {
	return string(p)
}

func (p PlanStatus) IsValid() bool {
	for _, candidate := range validPlanStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePlanStatus(value string) (PlanStatus, error) {
	for _, candidate := range validPlanStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan status %q", value)
}
