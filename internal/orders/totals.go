package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const moneyPlaces = 2

// Charges are the order-level adjustments applied on top of the item total.
type Charges struct {
	Shipping       decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	CouponDiscount decimal.Decimal
	CouponCode     *string
}

// Totals is the canonical money breakdown persisted on an order.
type Totals struct {
	Total          decimal.Decimal
	Shipping       decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	CouponDiscount decimal.Decimal
	Final          decimal.Decimal
}

// Compute is the only place the final amount is derived:
// final = total + shipping + tax - discount - couponDiscount.
// Every component is rounded to cents first so the stored columns add up exactly.
func Compute(items []models.OrderItem, charges Charges) (Totals, error) {
	if err := validateCharges(charges); err != nil {
		return Totals{}, err
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}

	t := Totals{
		Total:          total.Round(moneyPlaces),
		Shipping:       charges.Shipping.Round(moneyPlaces),
		Tax:            charges.Tax.Round(moneyPlaces),
		Discount:       charges.Discount.Round(moneyPlaces),
		CouponDiscount: charges.CouponDiscount.Round(moneyPlaces),
	}
	t.Final = t.Total.Add(t.Shipping).Add(t.Tax).Sub(t.Discount).Sub(t.CouponDiscount).Round(moneyPlaces)
	if t.Final.IsNegative() {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "discounts exceed the order total")
	}
	return t, nil
}

// validateCharges rejects negative adjustments before any stock is touched.
func validateCharges(charges Charges) error {
	for _, charge := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"shipping", charges.Shipping},
		{"tax", charges.Tax},
		{"discount", charges.Discount},
		{"coupon discount", charges.CouponDiscount},
	} {
		if charge.value.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, charge.name+" must not be negative")
		}
	}
	return nil
}

func (t Totals) apply(order *models.Order) {
	order.TotalAmount = t.Total
	order.ShippingCost = t.Shipping
	order.TaxAmount = t.Tax
	order.DiscountAmount = t.Discount
	order.CouponDiscount = t.CouponDiscount
	order.FinalAmount = t.Final
	order.RefundedAmount = decimal.Zero
	order.RefundReserved = decimal.Zero
}
