package enums

import "fmt"

// ReturnReason is the customer-supplied reason category for a return.
type ReturnReason string

const (
	ReturnReasonDefective      ReturnReason = "DEFECTIVE"
	ReturnReasonWrongItem      ReturnReason = "WRONG_ITEM"
	ReturnReasonNotAsDescribed ReturnReason = "NOT_AS_DESCRIBED"
	ReturnReasonSizeIssue      ReturnReason = "SIZE_ISSUE"
	ReturnReasonChangedMind    ReturnReason = "CHANGED_MIND"
	ReturnReasonOther          ReturnReason = "OTHER"
)

var validReturnReasons = []ReturnReason{
	ReturnReasonDefective,
	ReturnReasonWrongItem,
	ReturnReasonNotAsDescribed,
	ReturnReasonSizeIssue,
	ReturnReasonChangedMind,
	ReturnReasonOther,
}

// String implements fmt.Stringer.
func (r ReturnReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnReason.
func (r ReturnReason) IsValid() bool {
	for _, candidate := range validReturnReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReturnReason converts raw input into a ReturnReason.
func ParseReturnReason(value string) (ReturnReason, error) {
	for _, candidate := range validReturnReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return reason %q", value)
}
