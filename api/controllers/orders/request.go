package orders

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type itemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type guestRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"max=40"`
}

type addressFields struct {
	ShippingAddressID     *uuid.UUID             `json:"shippingAddressId"`
	ShippingAddress       *types.AddressSnapshot `json:"shippingAddress"`
	BillingAddressID      *uuid.UUID             `json:"billingAddressId"`
	BillingAddress        *types.AddressSnapshot `json:"billingAddress"`
	BillingSameAsShipping bool                   `json:"billingSameAsShipping"`
}

func (a addressFields) toAddresses() internalorders.Addresses {
	return internalorders.Addresses{
		ShippingAddressID:     a.ShippingAddressID,
		ShippingAddress:       a.ShippingAddress,
		BillingAddressID:      a.BillingAddressID,
		BillingAddress:        a.BillingAddress,
		BillingSameAsShipping: a.BillingSameAsShipping,
	}
}

type chargeFields struct {
	Shipping       decimal.Decimal `json:"shipping" validate:"gte=0"`
	Tax            decimal.Decimal `json:"tax" validate:"gte=0"`
	Discount       decimal.Decimal `json:"discount" validate:"gte=0"`
	CouponDiscount decimal.Decimal `json:"couponDiscount" validate:"gte=0"`
	CouponCode     *string         `json:"couponCode" validate:"omitempty,max=64"`
}

func (c chargeFields) toCharges() internalorders.Charges {
	return internalorders.Charges{
		Shipping:       c.Shipping,
		Tax:            c.Tax,
		Discount:       c.Discount,
		CouponDiscount: c.CouponDiscount,
		CouponCode:     validators.OptionalString(c.CouponCode, 64),
	}
}

// createOrderRequest omits items to check out the caller's cart.
type createOrderRequest struct {
	Items         []itemRequest `json:"items" validate:"omitempty,dive"`
	Guest         *guestRequest `json:"guest"`
	PaymentMethod string        `json:"paymentMethod"`
	Notes         *string       `json:"notes" validate:"omitempty,max=1000"`
	addressFields
	chargeFields
}

type manualOrderRequest struct {
	CustomerID    uuid.UUID     `json:"customerId" validate:"required"`
	Items         []itemRequest `json:"items" validate:"required,min=1,dive"`
	Status        *string       `json:"status"`
	PaymentStatus *string       `json:"paymentStatus"`
	PaymentMethod string        `json:"paymentMethod"`
	Notes         *string       `json:"notes" validate:"omitempty,max=1000"`
	addressFields
	chargeFields
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required"`
	Note          string `json:"note" validate:"max=1000"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

type vendorRequest struct {
	VendorID uuid.UUID `json:"vendorId" validate:"required"`
	Note     string    `json:"note" validate:"max=1000"`
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason string          `json:"reason" validate:"required,max=500"`
}

func toItemRequests(items []itemRequest) []internalorders.ItemRequest {
	out := make([]internalorders.ItemRequest, 0, len(items))
	for _, item := range items {
		out = append(out, internalorders.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

func parseOrderStatus(raw string) (enums.OrderStatus, error) {
	status := enums.OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]string{"status": raw})
	}
	return status, nil
}

func parsePaymentStatus(raw string) (enums.PaymentStatus, error) {
	status := enums.PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status").WithDetails(map[string]string{"paymentStatus": raw})
	}
	return status, nil
}

func parsePaymentMethod(raw string) enums.PaymentMethod {
	return enums.PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
}
