package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent announces a newly placed order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerID    *uuid.UUID          `json:"customer_id,omitempty"`
	GuestEmail    *string             `json:"guest_email,omitempty"`
	VendorIDs     []uuid.UUID         `json:"vendor_ids,omitempty"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	FinalAmount   decimal.Decimal     `json:"final_amount"`
	ItemCount     int                 `json:"item_count"`
}

// OrderStatusChangedEvent covers fulfillment transitions, cancellation included.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	Note        string            `json:"note,omitempty"`
	ChangedAt   time.Time         `json:"changed_at"`
}

type OrderPaymentStatusChangedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	From        enums.PaymentStatus `json:"from"`
	To          enums.PaymentStatus `json:"to"`
	ChangedAt   time.Time           `json:"changed_at"`
}

// OrderRefundedEvent is emitted for admin-initiated refunds.
type OrderRefundedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	OrderNumber    string              `json:"order_number"`
	Amount         decimal.Decimal     `json:"amount"`
	RefundedAmount decimal.Decimal     `json:"refunded_amount"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	Reason         string              `json:"reason"`
	StockRestored  bool                `json:"stock_restored"`
}

// ReturnEvent carries the shared shape of every return lifecycle event.
type ReturnEvent struct {
	ReturnID       uuid.UUID          `json:"return_id"`
	ReturnNumber   string             `json:"return_number"`
	OrderID        uuid.UUID          `json:"order_id"`
	CustomerID     *uuid.UUID         `json:"customer_id,omitempty"`
	Status         enums.ReturnStatus `json:"status"`
	RefundAmount   decimal.Decimal    `json:"refund_amount"`
	PaidAmount     *decimal.Decimal   `json:"paid_amount,omitempty"`
	Carrier        *string            `json:"carrier,omitempty"`
	TrackingNumber *string            `json:"tracking_number,omitempty"`
	LabelURL       *string            `json:"label_url,omitempty"`
	Reason         string             `json:"reason,omitempty"`
}
