package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressSnapshot is a point-in-time copy of an address book entry stored on an order.
type AddressSnapshot struct {
	FullName    string `json:"fullName"`
	Phone       string `json:"phone"`
	Area        string `json:"area"`
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	Landmark    string `json:"landmark,omitempty"`
}

// Validate checks the fields a courier needs.
func (a AddressSnapshot) Validate() error {
	if strings.TrimSpace(a.FullName) == "" {
		return fmt.Errorf("address: missing full name")
	}
	if strings.TrimSpace(a.AddressLine) == "" {
		return fmt.Errorf("address: missing address line")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	return nil
}

// Value marshals the snapshot into a jsonb document.
func (a AddressSnapshot) Value() (driver.Value, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("address: marshal: %w", err)
	}
	return string(raw), nil
}

// Scan decodes a jsonb document.
func (a *AddressSnapshot) Scan(value interface{}) error {
	if value == nil {
		*a = AddressSnapshot{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	return json.Unmarshal(raw, a)
}
