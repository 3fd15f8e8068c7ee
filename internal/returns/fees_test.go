package returns

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s got %s", want, got.String())
}

func TestComputeFees(t *testing.T) {
	t.Parallel()

	threshold := dec("50")
	cases := []struct {
		name       string
		total      string
		orderFinal string
		policy     models.ReturnPolicy
		fee        string
		shipping   string
		refund     string
	}{
		{
			name:       "restocking and buyer shipping",
			total:      "100",
			orderFinal: "100",
			policy: models.ReturnPolicy{
				RestockingFeePercentage: dec("10"),
				ReturnShippingPaidBy:    enums.ReturnShippingBuyer,
				ReturnShippingFee:       dec("9.99"),
			},
			fee: "10.00", shipping: "9.99", refund: "80.01",
		},
		{
			name:       "seller pays",
			total:      "40",
			orderFinal: "40",
			policy: models.ReturnPolicy{
				ReturnShippingPaidBy: enums.ReturnShippingSeller,
				ReturnShippingFee:    dec("9.99"),
			},
			fee: "0", shipping: "0", refund: "40",
		},
		{
			name:       "conditional below threshold",
			total:      "40",
			orderFinal: "40",
			policy: models.ReturnPolicy{
				ReturnShippingPaidBy: enums.ReturnShippingConditional,
				ReturnShippingFee:    dec("5"),
				FreeReturnThreshold:  &threshold,
			},
			fee: "0", shipping: "5", refund: "35",
		},
		{
			name:       "conditional at threshold is free",
			total:      "20",
			orderFinal: "60",
			policy: models.ReturnPolicy{
				ReturnShippingPaidBy: enums.ReturnShippingConditional,
				ReturnShippingFee:    dec("5"),
				FreeReturnThreshold:  &threshold,
			},
			fee: "0", shipping: "0", refund: "20",
		},
		{
			name:       "conditional without threshold charges",
			total:      "20",
			orderFinal: "500",
			policy: models.ReturnPolicy{
				ReturnShippingPaidBy: enums.ReturnShippingConditional,
				ReturnShippingFee:    dec("5"),
			},
			fee: "0", shipping: "5", refund: "15",
		},
		{
			name:       "fee rounds to cents",
			total:      "33.35",
			orderFinal: "33.35",
			policy: models.ReturnPolicy{
				RestockingFeePercentage: dec("15"),
				ReturnShippingPaidBy:    enums.ReturnShippingSeller,
			},
			fee: "5.00", shipping: "0", refund: "28.35",
		},
		{
			name:       "refund floors at zero",
			total:      "4",
			orderFinal: "4",
			policy: models.ReturnPolicy{
				RestockingFeePercentage: dec("50"),
				ReturnShippingPaidBy:    enums.ReturnShippingBuyer,
				ReturnShippingFee:       dec("9.99"),
			},
			fee: "2", shipping: "9.99", refund: "0",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fees := ComputeFees(dec(tc.total), dec(tc.orderFinal), tc.policy)
			requireAmount(t, tc.total, fees.Total)
			requireAmount(t, tc.fee, fees.RestockingFee)
			requireAmount(t, tc.shipping, fees.ShippingCost)
			requireAmount(t, tc.refund, fees.Refund)
		})
	}
}

func TestComputeFeesNeverNegative(t *testing.T) {
	t.Parallel()
	policy := models.ReturnPolicy{
		RestockingFeePercentage: dec("100"),
		ReturnShippingPaidBy:    enums.ReturnShippingBuyer,
		ReturnShippingFee:       dec("25"),
	}
	for _, total := range []string{"0", "0.01", "1", "24.99", "100"} {
		fees := ComputeFees(dec(total), dec(total), policy)
		require.False(t, fees.Refund.IsNegative(), "total %s", total)
	}
}
