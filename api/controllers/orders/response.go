package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type orderResponse struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"orderNumber"`
	CustomerID      *uuid.UUID            `json:"customerId,omitempty"`
	GuestEmail      *string               `json:"guestEmail,omitempty"`
	GuestName       *string               `json:"guestName,omitempty"`
	VendorID        *uuid.UUID            `json:"vendorId,omitempty"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentStatus   enums.PaymentStatus   `json:"paymentStatus"`
	PaymentMethod   enums.PaymentMethod   `json:"paymentMethod"`
	ShippingAddress types.AddressSnapshot `json:"shippingAddress"`
	BillingAddress  types.AddressSnapshot `json:"billingAddress"`
	TotalAmount     decimal.Decimal       `json:"totalAmount"`
	ShippingCost    decimal.Decimal       `json:"shippingCost"`
	TaxAmount       decimal.Decimal       `json:"taxAmount"`
	DiscountAmount  decimal.Decimal       `json:"discountAmount"`
	CouponDiscount  decimal.Decimal       `json:"couponDiscount"`
	CouponCode      *string               `json:"couponCode,omitempty"`
	FinalAmount     decimal.Decimal       `json:"finalAmount"`
	RefundedAmount  decimal.Decimal       `json:"refundedAmount"`
	Notes           *string               `json:"notes,omitempty"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	ShippedAt       *time.Time            `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time            `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
	Items           []orderItemResponse   `json:"items"`
	History         []historyResponse     `json:"history,omitempty"`
}

type orderItemResponse struct {
	ID                uuid.UUID        `json:"id"`
	ProductID         uuid.UUID        `json:"productId"`
	VendorID          *uuid.UUID       `json:"vendorId,omitempty"`
	ProductName       string           `json:"productName"`
	SKU               string           `json:"sku"`
	Image             string           `json:"image,omitempty"`
	Price             decimal.Decimal  `json:"price"`
	CompareAtPrice    *decimal.Decimal `json:"compareAtPrice,omitempty"`
	Quantity          int              `json:"quantity"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	RestockedQuantity int              `json:"restockedQuantity"`
}

type historyResponse struct {
	Action    enums.OrderHistoryAction `json:"action"`
	ActorKind enums.ActorKind          `json:"actorKind"`
	ActorID   string                   `json:"actorId"`
	OldValue  *string                  `json:"oldValue,omitempty"`
	NewValue  *string                  `json:"newValue,omitempty"`
	Note      *string                  `json:"note,omitempty"`
	CreatedAt time.Time                `json:"createdAt"`
}

// newOrderResponse renders an order. History is only shown to admins.
func newOrderResponse(order *models.Order, withHistory bool) orderResponse {
	resp := orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		GuestEmail:      order.GuestEmail,
		GuestName:       order.GuestName,
		VendorID:        order.VendorID,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		TotalAmount:     order.TotalAmount,
		ShippingCost:    order.ShippingCost,
		TaxAmount:       order.TaxAmount,
		DiscountAmount:  order.DiscountAmount,
		CouponDiscount:  order.CouponDiscount,
		CouponCode:      order.CouponCode,
		FinalAmount:     order.FinalAmount,
		RefundedAmount:  order.RefundedAmount,
		Notes:           order.Notes,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		Items:           make([]orderItemResponse, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			VendorID:          item.VendorID,
			ProductName:       item.ProductName,
			SKU:               item.SKU,
			Image:             item.Image,
			Price:             item.Price,
			CompareAtPrice:    item.CompareAtPrice,
			Quantity:          item.Quantity,
			Subtotal:          item.Subtotal(),
			RestockedQuantity: item.RestockedQuantity,
		})
	}
	if withHistory {
		for _, entry := range order.History {
			resp.History = append(resp.History, historyResponse{
				Action:    entry.Action,
				ActorKind: entry.ActorKind,
				ActorID:   entry.ActorID,
				OldValue:  entry.OldValue,
				NewValue:  entry.NewValue,
				Note:      entry.Note,
				CreatedAt: entry.CreatedAt,
			})
		}
	}
	return resp
}

func newOrderPage(page *pagination.Page[models.Order], withHistory bool) pagination.Page[orderResponse] {
	out := pagination.Page[orderResponse]{
		Items:      make([]orderResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Items {
		out.Items = append(out.Items, newOrderResponse(&page.Items[i], withHistory))
	}
	return out
}
