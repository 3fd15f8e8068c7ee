package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Cart is owned by exactly one customer or one guest session.
type Cart struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Type       enums.CartType `gorm:"column:type;type:text;not null"`
	CustomerID *uuid.UUID     `gorm:"column:customer_id;type:uuid;index:ux_carts_active_customer,unique,where:is_active = true"`
	SessionID  *string        `gorm:"column:session_id;index:ux_carts_active_session,unique,where:is_active = true"`
	IsActive   bool           `gorm:"column:is_active;not null"`
	Items      []CartItem     `gorm:"foreignKey:CartID"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
