package enums

import "testing"

func TestParseRoundTripsKnownValues(t *testing.T) {
	for _, status := range validOrderStatuses {
		got, err := ParseOrderStatus(status.String())
		if err != nil || got != status {
			t.Fatalf("order status %s did not parse: %v", status, err)
		}
	}
	for _, status := range validReturnStatuses {
		got, err := ParseReturnStatus(status.String())
		if err != nil || got != status {
			t.Fatalf("return status %s did not parse: %v", status, err)
		}
	}
	if _, err := ParsePaymentStatus("paid"); err == nil {
		t.Fatalf("parsing is case sensitive")
	}
}

func TestOrderStatusPredicates(t *testing.T) {
	cancellable := map[OrderStatus]bool{
		OrderStatusPending:   true,
		OrderStatusConfirmed: true,
		OrderStatusShipped:   false,
		OrderStatusDelivered: false,
		OrderStatusCancelled: false,
	}
	for status, want := range cancellable {
		if got := status.CanBeCancelled(); got != want {
			t.Fatalf("%s CanBeCancelled=%v want %v", status, got, want)
		}
	}
	if !OrderStatusShipped.IsReturnable() || !OrderStatusDelivered.IsReturnable() || OrderStatusConfirmed.IsReturnable() {
		t.Fatalf("unexpected returnable predicate")
	}
}

func TestPaymentStatusIsPaid(t *testing.T) {
	paid := map[PaymentStatus]bool{
		PaymentStatusPending:           false,
		PaymentStatusPaid:              true,
		PaymentStatusFailed:            false,
		PaymentStatusRefunded:          true,
		PaymentStatusPartiallyRefunded: false,
	}
	for status, want := range paid {
		if got := status.IsPaid(); got != want {
			t.Fatalf("%s IsPaid=%v want %v", status, got, want)
		}
	}
}

func TestReturnStatusCountsTowardReturned(t *testing.T) {
	if ReturnStatusRejected.CountsTowardReturned() || ReturnStatusCancelled.CountsTowardReturned() {
		t.Fatalf("closed requests must not hold quantities")
	}
	if !ReturnStatusRequested.CountsTowardReturned() || !ReturnStatusRefunded.CountsTowardReturned() {
		t.Fatalf("open and refunded requests hold quantities")
	}
}

func TestParseOutboxDLQErrorReason(t *testing.T) {
	for _, reason := range validOutboxDLQErrorReasons {
		got, err := ParseOutboxDLQErrorReason(string(reason))
		if err != nil || got != reason {
			t.Fatalf("round trip of %s failed: %v", reason, err)
		}
	}
	if _, err := ParseOutboxDLQErrorReason("gave_up"); err == nil {
		t.Fatalf("expected error for unknown reason")
	}
}
