package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the root aggregate created from a cart or an admin item list.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string                `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	CustomerID      *uuid.UUID            `gorm:"column:customer_id;type:uuid;index"`
	GuestEmail      *string               `gorm:"column:guest_email"`
	GuestName       *string               `gorm:"column:guest_name"`
	GuestPhone      *string               `gorm:"column:guest_phone"`
	VendorID        *uuid.UUID            `gorm:"column:vendor_id;type:uuid;index"`
	Status          enums.OrderStatus     `gorm:"column:status;type:text;not null"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null"`
	ShippingAddress types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress  types.AddressSnapshot `gorm:"column:billing_address;type:jsonb;not null"`
	TotalAmount     decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ShippingCost    decimal.Decimal       `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	TaxAmount       decimal.Decimal       `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount  decimal.Decimal       `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	CouponDiscount  decimal.Decimal       `gorm:"column:coupon_discount;type:numeric(12,2);not null"`
	FinalAmount     decimal.Decimal       `gorm:"column:final_amount;type:numeric(12,2);not null"`
	RefundedAmount  decimal.Decimal       `gorm:"column:refunded_amount;type:numeric(12,2);not null"`
	RefundReserved  decimal.Decimal       `gorm:"column:refund_reserved_amount;type:numeric(12,2);not null;default:0"`
	CouponCode      *string               `gorm:"column:coupon_code"`
	Notes           *string               `gorm:"column:notes"`
	CreatedByKind   enums.ActorKind       `gorm:"column:created_by_kind;type:text;not null"`
	CreatedByID     string                `gorm:"column:created_by_id;not null"`
	PaidAt          *time.Time            `gorm:"column:paid_at"`
	ShippedAt       *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time            `gorm:"column:delivered_at"`
	CancelledAt     *time.Time            `gorm:"column:cancelled_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`

	Items   []OrderItem    `gorm:"foreignKey:OrderID"`
	History []OrderHistory `gorm:"foreignKey:OrderID"`
}
