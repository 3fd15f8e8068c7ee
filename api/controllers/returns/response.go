package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type returnItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	OrderItemID  uuid.UUID       `json:"orderItemId"`
	Quantity     int             `json:"quantity"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
	Condition    *string         `json:"condition,omitempty"`
}

type returnResponse struct {
	ID                 uuid.UUID            `json:"id"`
	ReturnNumber       string               `json:"returnNumber"`
	OrderID            uuid.UUID            `json:"orderId"`
	CustomerID         *uuid.UUID           `json:"customerId,omitempty"`
	PolicyID           *uuid.UUID           `json:"policyId,omitempty"`
	Reason             enums.ReturnReason   `json:"reason"`
	ReasonDetails      string               `json:"reasonDetails,omitempty"`
	Status             enums.ReturnStatus   `json:"status"`
	TotalAmount        decimal.Decimal      `json:"totalAmount"`
	RestockingFee      decimal.Decimal      `json:"restockingFee"`
	ReturnShippingCost decimal.Decimal      `json:"returnShippingCost"`
	RefundAmount       decimal.Decimal      `json:"refundAmount"`
	RefundPayout       *decimal.Decimal     `json:"refundPayout,omitempty"`
	OriginalPackaging  bool                 `json:"originalPackaging"`
	Carrier            *string              `json:"carrier,omitempty"`
	TrackingNumber     *string              `json:"trackingNumber,omitempty"`
	LabelURL           *string              `json:"labelUrl,omitempty"`
	RMANumber          *string              `json:"rmaNumber,omitempty"`
	RejectionReason    *string              `json:"rejectionReason,omitempty"`
	AdminNotes         *string              `json:"adminNotes,omitempty"`
	LastRefundError    *string              `json:"lastRefundError,omitempty"`
	RefundDeadline     *time.Time           `json:"refundDeadline,omitempty"`
	ApprovedAt         *time.Time           `json:"approvedAt,omitempty"`
	RejectedAt         *time.Time           `json:"rejectedAt,omitempty"`
	CancelledAt        *time.Time           `json:"cancelledAt,omitempty"`
	RefundedAt         *time.Time           `json:"refundedAt,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
	Items              []returnItemResponse `json:"items"`
}

// newReturnResponse hides admin notes and refund errors from customers.
func newReturnResponse(request *models.ReturnRequest, admin bool) returnResponse {
	resp := returnResponse{
		ID:                 request.ID,
		ReturnNumber:       request.ReturnNumber,
		OrderID:            request.OrderID,
		CustomerID:         request.CustomerID,
		PolicyID:           request.PolicyID,
		Reason:             request.Reason,
		ReasonDetails:      request.ReasonDetails,
		Status:             request.Status,
		TotalAmount:        request.TotalAmount,
		RestockingFee:      request.RestockingFee,
		ReturnShippingCost: request.ReturnShippingCost,
		RefundAmount:       request.RefundAmount,
		RefundPayout:       request.RefundPayout,
		OriginalPackaging:  request.OriginalPackaging,
		Carrier:            request.Carrier,
		TrackingNumber:     request.TrackingNumber,
		LabelURL:           request.LabelURL,
		RMANumber:          request.RMANumber,
		RejectionReason:    request.RejectionReason,
		RefundDeadline:     request.RefundDeadline,
		ApprovedAt:         request.ApprovedAt,
		RejectedAt:         request.RejectedAt,
		CancelledAt:        request.CancelledAt,
		RefundedAt:         request.RefundedAt,
		CreatedAt:          request.CreatedAt,
		UpdatedAt:          request.UpdatedAt,
		Items:              make([]returnItemResponse, 0, len(request.Items)),
	}
	if admin {
		resp.AdminNotes = request.AdminNotes
		resp.LastRefundError = request.LastRefundError
	}
	for _, item := range request.Items {
		resp.Items = append(resp.Items, returnItemResponse{
			ID:           item.ID,
			OrderItemID:  item.OrderItemID,
			Quantity:     item.Quantity,
			RefundAmount: item.RefundAmount,
			Condition:    item.Condition,
		})
	}
	return resp
}

func newReturnPage(page *pagination.Page[models.ReturnRequest], admin bool) pagination.Page[returnResponse] {
	out := pagination.Page[returnResponse]{
		Items:      make([]returnResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Items {
		out.Items = append(out.Items, newReturnResponse(&page.Items[i], admin))
	}
	return out
}

type policyResponse struct {
	ID                        uuid.UUID                 `json:"id"`
	Name                      string                    `json:"name"`
	ReturnWindowDays          int                       `json:"returnWindowDays"`
	RefundWindowDays          int                       `json:"refundWindowDays"`
	FreeReturnThreshold       *decimal.Decimal          `json:"freeReturnThreshold,omitempty"`
	RestockingFeePercentage   decimal.Decimal           `json:"restockingFeePercentage"`
	ReturnShippingPaidBy      enums.ReturnShippingPayer `json:"returnShippingPaidBy"`
	ReturnShippingFee         decimal.Decimal           `json:"returnShippingFee"`
	RequiresRMA               bool                      `json:"requiresRma"`
	AllowPartialReturns       bool                      `json:"allowPartialReturns"`
	RequiresOriginalPackaging bool                      `json:"requiresOriginalPackaging"`
	IsDefault                 bool                      `json:"isDefault"`
	IsActive                  bool                      `json:"isActive"`
}

func newPolicyResponse(policy *models.ReturnPolicy) policyResponse {
	return policyResponse{
		ID:                        policy.ID,
		Name:                      policy.Name,
		ReturnWindowDays:          policy.ReturnWindowDays,
		RefundWindowDays:          policy.RefundWindowDays,
		FreeReturnThreshold:       policy.FreeReturnThreshold,
		RestockingFeePercentage:   policy.RestockingFeePercentage,
		ReturnShippingPaidBy:      policy.ReturnShippingPaidBy,
		ReturnShippingFee:         policy.ReturnShippingFee,
		RequiresRMA:               policy.RequiresRMA,
		AllowPartialReturns:       policy.AllowPartialReturns,
		RequiresOriginalPackaging: policy.RequiresOriginalPackaging,
		IsDefault:                 policy.IsDefault,
		IsActive:                  policy.IsActive,
	}
}

type eligibilityResponse struct {
	OrderID          uuid.UUID `json:"orderId"`
	Eligible         bool      `json:"eligible"`
	Reason           string    `json:"reason,omitempty"`
	Deadline         time.Time `json:"deadline"`
	ReturnWindowDays int       `json:"returnWindowDays"`
}
