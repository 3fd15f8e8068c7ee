package enums

import "fmt"

// CartType distinguishes customer carts from guest session carts.
type CartType string

const (
	CartTypeCustomer CartType = "CUSTOMER"
	CartTypeGuest    CartType = "GUEST"
)

var validCartTypes = []CartType{
	CartTypeCustomer,
	CartTypeGuest,
}

// String implements fmt.Stringer.
func (c CartType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartType.
func (c CartType) IsValid() bool {
	for _, candidate := range validCartTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartType converts raw input into a CartType.
func ParseCartType(value string) (CartType, error) {
	for _, candidate := range validCartTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart type %q", value)
}
