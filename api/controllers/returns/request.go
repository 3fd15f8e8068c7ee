package returns

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	returnsvc "github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type returnItemRequest struct {
	OrderItemID uuid.UUID `json:"orderItemId" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,min=1"`
	Condition   *string   `json:"condition" validate:"omitempty,max=200"`
}

type createReturnRequest struct {
	OrderID           uuid.UUID           `json:"orderId" validate:"required"`
	Reason            string              `json:"reason" validate:"required"`
	ReasonDetails     string              `json:"reasonDetails" validate:"max=2000"`
	OriginalPackaging bool                `json:"originalPackaging"`
	Items             []returnItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r createReturnRequest) toInput(customerID uuid.UUID) (returnsvc.CreateReturnInput, error) {
	reason, err := enums.ParseReturnReason(strings.ToUpper(strings.TrimSpace(r.Reason)))
	if err != nil {
		return returnsvc.CreateReturnInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown return reason")
	}
	items := make([]returnsvc.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, returnsvc.ItemInput{
			OrderItemID: item.OrderItemID,
			Quantity:    item.Quantity,
			Condition:   item.Condition,
		})
	}
	return returnsvc.CreateReturnInput{
		CustomerID:        customerID,
		OrderID:           r.OrderID,
		Reason:            reason,
		ReasonDetails:     strings.TrimSpace(r.ReasonDetails),
		OriginalPackaging: r.OriginalPackaging,
		Items:             items,
	}, nil
}

type approveRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type createPolicyRequest struct {
	Name                      string           `json:"name" validate:"required,max=200"`
	ReturnWindowDays          int              `json:"returnWindowDays" validate:"required,min=1"`
	RefundWindowDays          int              `json:"refundWindowDays" validate:"required,min=1"`
	FreeReturnThreshold       *decimal.Decimal `json:"freeReturnThreshold"`
	RestockingFeePercentage   decimal.Decimal  `json:"restockingFeePercentage"`
	ReturnShippingPaidBy      string           `json:"returnShippingPaidBy" validate:"required"`
	ReturnShippingFee         decimal.Decimal  `json:"returnShippingFee"`
	RequiresRMA               bool             `json:"requiresRma"`
	AllowPartialReturns       bool             `json:"allowPartialReturns"`
	RequiresOriginalPackaging bool             `json:"requiresOriginalPackaging"`
	IsDefault                 bool             `json:"isDefault"`
}

func (r createPolicyRequest) toInput() (returnsvc.CreatePolicyInput, error) {
	payer, err := enums.ParseReturnShippingPayer(strings.ToUpper(strings.TrimSpace(r.ReturnShippingPaidBy)))
	if err != nil {
		return returnsvc.CreatePolicyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown return shipping payer")
	}
	return returnsvc.CreatePolicyInput{
		Name:                      r.Name,
		ReturnWindowDays:          r.ReturnWindowDays,
		RefundWindowDays:          r.RefundWindowDays,
		FreeReturnThreshold:       r.FreeReturnThreshold,
		RestockingFeePercentage:   r.RestockingFeePercentage,
		ReturnShippingPaidBy:      payer,
		ReturnShippingFee:         r.ReturnShippingFee,
		RequiresRMA:               r.RequiresRMA,
		AllowPartialReturns:       r.AllowPartialReturns,
		RequiresOriginalPackaging: r.RequiresOriginalPackaging,
		IsDefault:                 r.IsDefault,
	}, nil
}
