package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox row describes.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateReturnRequest OutboxAggregateType = "return_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateReturnRequest,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the notification emitted for a domain mutation.
type OutboxEventType string

const (
	EventOrderCreated              OutboxEventType = "order_created"
	EventOrderStatusChanged        OutboxEventType = "order_status_changed"
	EventOrderPaymentStatusChanged OutboxEventType = "order_payment_status_changed"
	EventOrderRefunded             OutboxEventType = "order_refunded"
	EventReturnRequested           OutboxEventType = "return_requested"
	EventReturnApproved            OutboxEventType = "return_approved"
	EventReturnRejected            OutboxEventType = "return_rejected"
	EventReturnCancelled           OutboxEventType = "return_cancelled"
	EventReturnRefunded            OutboxEventType = "return_refunded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderPaymentStatusChanged,
	EventOrderRefunded,
	EventReturnRequested,
	EventReturnApproved,
	EventReturnRejected,
	EventReturnCancelled,
	EventReturnRefunded,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
