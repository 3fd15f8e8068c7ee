package enums

import "fmt"

// CartIssueReason explains why a cart line would fail checkout.
type CartIssueReason string

const (
	CartIssueProductMissing     CartIssueReason = "PRODUCT_NOT_FOUND"
	CartIssueProductUnavailable CartIssueReason = "PRODUCT_UNAVAILABLE"
	CartIssueInsufficientStock  CartIssueReason = "INSUFFICIENT_STOCK"
)

var validCartIssueReasons = []CartIssueReason{
	CartIssueProductMissing,
	CartIssueProductUnavailable,
	CartIssueInsufficientStock,
}

// String implements fmt.Stringer.
func (c CartIssueReason) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CartIssueReason) IsValid() bool {
	for _, candidate := range validCartIssueReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartIssueReason converts raw input into a CartIssueReason.
func ParseCartIssueReason(value string) (CartIssueReason, error) {
	for _, candidate := range validCartIssueReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart issue reason %q", value)
}
