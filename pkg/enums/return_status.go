package enums

import "fmt"

// ReturnStatus tracks a return request through approval and refund.
type ReturnStatus string

const (
	ReturnStatusRequested        ReturnStatus = "REQUESTED"
	ReturnStatusApproved         ReturnStatus = "APPROVED"
	ReturnStatusRefundProcessing ReturnStatus = "REFUND_PROCESSING"
	ReturnStatusRefunded         ReturnStatus = "REFUNDED"
	ReturnStatusRejected         ReturnStatus = "REJECTED"
	ReturnStatusCancelled        ReturnStatus = "CANCELLED"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusRequested,
	ReturnStatusApproved,
	ReturnStatusRefundProcessing,
	ReturnStatusRefunded,
	ReturnStatusRejected,
	ReturnStatusCancelled,
}

// String implements fmt.Stringer.
func (r ReturnStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnStatus.
func (r ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}

// IsTerminal reports whether the request can no longer change state.
func (r ReturnStatus) IsTerminal() bool {
	return r == ReturnStatusRefunded || r == ReturnStatusRejected || r == ReturnStatusCancelled
}

// CountsTowardReturned reports whether items on a request in this status are
// considered already returned for eligibility purposes.
func (r ReturnStatus) CountsTowardReturned() bool {
	return r != ReturnStatusRejected && r != ReturnStatusCancelled
}
