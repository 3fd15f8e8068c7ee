package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var statusTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered},
}

var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending:           {enums.PaymentStatusPaid, enums.PaymentStatusFailed},
	enums.PaymentStatusFailed:            {enums.PaymentStatusPending, enums.PaymentStatusPaid},
	enums.PaymentStatusPaid:              {enums.PaymentStatusRefunded, enums.PaymentStatusPartiallyRefunded},
	enums.PaymentStatusPartiallyRefunded: {enums.PaymentStatusRefunded, enums.PaymentStatusPartiallyRefunded},
}

// CanTransitionStatus reports whether the fulfillment axis allows from -> to.
func CanTransitionStatus(from, to enums.OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether the payment axis allows from -> to.
// PARTIALLY_REFUNDED may repeat as further partial refunds accumulate.
func CanTransitionPayment(from, to enums.PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// statusTimestamp returns the column stamped when an order enters status.
func statusTimestamp(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusShipped:
		return "shipped_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}

func statusUpdates(to enums.OrderStatus, now time.Time) map[string]any {
	updates := map[string]any{"status": to, "updated_at": now}
	if column := statusTimestamp(to); column != "" {
		updates[column] = now
	}
	return updates
}

func paymentUpdates(to enums.PaymentStatus, now time.Time) map[string]any {
	updates := map[string]any{"payment_status": to, "updated_at": now}
	if to == enums.PaymentStatusPaid {
		updates["paid_at"] = now
	}
	return updates
}
