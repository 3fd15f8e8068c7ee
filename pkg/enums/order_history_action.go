package enums

import "fmt"

// OrderHistoryAction labels an entry in the order audit trail.
type OrderHistoryAction string

const (
	HistoryOrderCreated         OrderHistoryAction = "ORDER_CREATED"
	HistoryStatusChanged        OrderHistoryAction = "STATUS_CHANGED"
	HistoryPaymentStatusChanged OrderHistoryAction = "PAYMENT_STATUS_CHANGED"
	HistoryNoteAdded            OrderHistoryAction = "NOTE_ADDED"
	HistoryVendorReassigned     OrderHistoryAction = "VENDOR_REASSIGNED"
	HistoryRefundProcessed      OrderHistoryAction = "REFUND_PROCESSED"
	HistoryReturnRefunded       OrderHistoryAction = "RETURN_REFUNDED"
)

var validOrderHistoryActions = []OrderHistoryAction{
	HistoryOrderCreated,
	HistoryStatusChanged,
	HistoryPaymentStatusChanged,
	HistoryNoteAdded,
	HistoryVendorReassigned,
	HistoryRefundProcessed,
	HistoryReturnRefunded,
}

// String implements fmt.Stringer.
func (o OrderHistoryAction) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderHistoryAction.
func (o OrderHistoryAction) IsValid() bool {
	for _, candidate := range validOrderHistoryActions {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderHistoryAction converts raw input into a OrderHistoryAction.
func ParseOrderHistoryAction(value string) (OrderHistoryAction, error) {
	for _, candidate := range validOrderHistoryActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order history action %q", value)
}
