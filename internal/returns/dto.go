package returns

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// CreatePolicyInput describes a new return policy.
type CreatePolicyInput struct {
	Name                      string
	ReturnWindowDays          int
	RefundWindowDays          int
	FreeReturnThreshold       *decimal.Decimal
	RestockingFeePercentage   decimal.Decimal
	ReturnShippingPaidBy      enums.ReturnShippingPayer
	ReturnShippingFee         decimal.Decimal
	RequiresRMA               bool
	AllowPartialReturns       bool
	RequiresOriginalPackaging bool
	IsDefault                 bool
}

type ItemInput struct {
	OrderItemID uuid.UUID
	Quantity    int
	Condition   *string
}

// CreateReturnInput is a customer's request to send items back.
type CreateReturnInput struct {
	CustomerID        uuid.UUID
	OrderID           uuid.UUID
	Reason            enums.ReturnReason
	ReasonDetails     string
	OriginalPackaging bool
	Items             []ItemInput
}

// ListParams filters the return listing. Nil fields are ignored.
type ListParams struct {
	CustomerID *uuid.UUID
	OrderID    *uuid.UUID
	Status     *enums.ReturnStatus
	Pagination pagination.Params
}
