package enums

import "fmt"

// ReturnShippingPayer decides who bears return shipping cost.
type ReturnShippingPayer string

const (
	ReturnShippingBuyer       ReturnShippingPayer = "BUYER"
	ReturnShippingSeller      ReturnShippingPayer = "SELLER"
	ReturnShippingConditional ReturnShippingPayer = "CONDITIONAL"
)

var validReturnShippingPayers = []ReturnShippingPayer{
	ReturnShippingBuyer,
	ReturnShippingSeller,
	ReturnShippingConditional,
}

// String implements fmt.Stringer.
func (r ReturnShippingPayer) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnShippingPayer.
func (r ReturnShippingPayer) IsValid() bool {
	for _, candidate := range validReturnShippingPayers {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReturnShippingPayer converts raw input into a ReturnShippingPayer.
func ParseReturnShippingPayer(value string) (ReturnShippingPayer, error) {
	for _, candidate := range validReturnShippingPayers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return shipping payer %q", value)
}
