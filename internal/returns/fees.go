package returns

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Fees is the money breakdown of a return request.
type Fees struct {
	Total         decimal.Decimal
	RestockingFee decimal.Decimal
	ShippingCost  decimal.Decimal
	Refund        decimal.Decimal
}

// ComputeFees applies policy to the gross value of the returned items.
// orderFinal is the order's final amount, compared against the policy's
// free-return threshold when shipping is CONDITIONAL. Refund is never negative.
func ComputeFees(total, orderFinal decimal.Decimal, policy models.ReturnPolicy) Fees {
	total = total.Round(moneyPlaces)
	fee := decimal.Zero
	if policy.RestockingFeePercentage.IsPositive() {
		fee = total.Mul(policy.RestockingFeePercentage).Div(hundred).Round(moneyPlaces)
	}
	shipping := ReturnShippingCost(policy, orderFinal)

	refund := total.Sub(fee).Sub(shipping)
	if refund.IsNegative() {
		refund = decimal.Zero
	}
	return Fees{Total: total, RestockingFee: fee, ShippingCost: shipping, Refund: refund}
}

// ReturnShippingCost resolves who pays to ship the goods back. A CONDITIONAL
// policy without a threshold always charges the buyer.
func ReturnShippingCost(policy models.ReturnPolicy, orderFinal decimal.Decimal) decimal.Decimal {
	flat := policy.ReturnShippingFee.Round(moneyPlaces)
	switch policy.ReturnShippingPaidBy {
	case enums.ReturnShippingBuyer:
		return flat
	case enums.ReturnShippingConditional:
		if policy.FreeReturnThreshold != nil && !orderFinal.LessThan(*policy.FreeReturnThreshold) {
			return decimal.Zero
		}
		return flat
	default:
		return decimal.Zero
	}
}
