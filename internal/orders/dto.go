package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ItemRequest asks for qty units of a product.
type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// GuestInfo identifies a shopper checking out without an account.
type GuestInfo struct {
	Email string
	Name  string
	Phone string
}

// Addresses selects the shipping and billing snapshots. Saved addresses are
// referenced by id and must belong to the order's customer; inline addresses
// are copied as given. Billing falls back to a copy of shipping when neither
// billing field is set or BillingSameAsShipping is true.
type Addresses struct {
	ShippingAddressID     *uuid.UUID
	ShippingAddress       *types.AddressSnapshot
	BillingAddressID      *uuid.UUID
	BillingAddress        *types.AddressSnapshot
	BillingSameAsShipping bool
}

// CreateOrderInput drives customer and guest checkout. When Items is empty the
// owner's cart is checked out and cleared in the same transaction.
type CreateOrderInput struct {
	Actor         types.Actor
	CustomerID    *uuid.UUID
	Guest         *GuestInfo
	SessionID     *string
	Items         []ItemRequest
	Addresses     Addresses
	Charges       Charges
	PaymentMethod enums.PaymentMethod
	Notes         *string
}

// ManualOrderInput drives admin-created orders for an existing customer.
type ManualOrderInput struct {
	Actor         types.Actor
	CustomerID    uuid.UUID
	Items         []ItemRequest
	Addresses     Addresses
	Charges       Charges
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	PaymentMethod enums.PaymentMethod
	Notes         *string
}

// ListParams filters the order listing. Nil fields are ignored.
type ListParams struct {
	CustomerID    *uuid.UUID
	VendorID      *uuid.UUID
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Search        string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Pagination    pagination.Params
}

// StatsFilter narrows the reporting window.
type StatsFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	VendorID    *uuid.UUID
}

// Stats summarises orders for the admin dashboard.
type Stats struct {
	TotalOrders       int64                         `json:"totalOrders"`
	ByStatus          map[enums.OrderStatus]int64   `json:"byStatus"`
	ByPaymentStatus   map[enums.PaymentStatus]int64 `json:"byPaymentStatus"`
	GrossRevenue      decimal.Decimal               `json:"grossRevenue"`
	RefundedAmount    decimal.Decimal               `json:"refundedAmount"`
	AverageOrderValue decimal.Decimal               `json:"averageOrderValue"`
}
