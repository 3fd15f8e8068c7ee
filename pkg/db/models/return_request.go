package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ReturnRequest references its order by id only.
type ReturnRequest struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ReturnNumber       string             `gorm:"column:return_number;not null;uniqueIndex:ux_return_requests_number"`
	OrderID            uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID         *uuid.UUID         `gorm:"column:customer_id;type:uuid;index"`
	PolicyID           *uuid.UUID         `gorm:"column:policy_id;type:uuid"`
	Reason             enums.ReturnReason `gorm:"column:reason;type:text;not null"`
	ReasonDetails      string             `gorm:"column:reason_details"`
	Status             enums.ReturnStatus `gorm:"column:status;type:text;not null;index"`
	TotalAmount        decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null"`
	RestockingFee      decimal.Decimal    `gorm:"column:restocking_fee;type:numeric(12,2);not null"`
	ReturnShippingCost decimal.Decimal    `gorm:"column:return_shipping_cost;type:numeric(12,2);not null"`
	RefundAmount       decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2);not null"`
	OriginalPackaging  bool               `gorm:"column:original_packaging;not null"`
	Carrier            *string            `gorm:"column:carrier"`
	TrackingNumber     *string            `gorm:"column:tracking_number"`
	LabelURL           *string            `gorm:"column:label_url"`
	RMANumber          *string            `gorm:"column:rma_number"`
	RejectionReason    *string            `gorm:"column:rejection_reason"`
	AdminNotes         *string            `gorm:"column:admin_notes"`
	LastRefundError    *string            `gorm:"column:last_refund_error"`
	RefundClaimedAt    *time.Time         `gorm:"column:refund_claimed_at"`
	RefundPayout       *decimal.Decimal   `gorm:"column:refund_payout;type:numeric(12,2)"`
	RefundPaidAt       *time.Time         `gorm:"column:refund_paid_at"`
	RefundDeadline     *time.Time         `gorm:"column:refund_deadline"`
	ApprovedAt         *time.Time         `gorm:"column:approved_at"`
	RejectedAt         *time.Time         `gorm:"column:rejected_at"`
	CancelledAt        *time.Time         `gorm:"column:cancelled_at"`
	RefundedAt         *time.Time         `gorm:"column:refunded_at"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Items []ReturnItem `gorm:"foreignKey:ReturnID"`
}

type ReturnItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ReturnID     uuid.UUID       `gorm:"column:return_id;type:uuid;not null;index"`
	OrderItemID  uuid.UUID       `gorm:"column:order_item_id;type:uuid;not null;index"`
	Quantity     int             `gorm:"column:quantity;not null"`
	RefundAmount decimal.Decimal `gorm:"column:refund_amount;type:numeric(12,2);not null"`
	Condition    *string         `gorm:"column:condition"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
