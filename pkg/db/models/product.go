package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product holds the catalog facts the order engine reads. Catalog CRUD lives elsewhere.
type Product struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	VendorID       *uuid.UUID       `gorm:"column:vendor_id;type:uuid"`
	Name           string           `gorm:"column:name;not null"`
	SKU            string           `gorm:"column:sku;not null"`
	Price          decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	CompareAtPrice *decimal.Decimal `gorm:"column:compare_at_price;type:numeric(12,2)"`
	Images         []string         `gorm:"column:images;type:jsonb;serializer:json"`
	Stock          int              `gorm:"column:stock;not null"`
	TrackQuantity  bool             `gorm:"column:track_quantity;not null"`
	AllowBackorder bool             `gorm:"column:allow_backorder;not null"`
	IsActive       bool             `gorm:"column:is_active;not null"`
	IsPublished    bool             `gorm:"column:is_published;not null"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsAvailable reports whether the product can be purchased at all.
func (p Product) IsAvailable() bool {
	return p.IsActive && p.IsPublished
}
