package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a mutable address book entry. Orders copy it, never reference it.
type Address struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	FullName    string    `gorm:"column:full_name;not null"`
	Phone       string    `gorm:"column:phone;not null"`
	Area        string    `gorm:"column:area"`
	AddressLine string    `gorm:"column:address_line;not null"`
	City        string    `gorm:"column:city;not null"`
	Landmark    string    `gorm:"column:landmark"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
