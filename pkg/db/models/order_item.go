package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is an immutable line snapshot. RestockedQuantity is the only field
// that moves after creation, tracking units already returned to stock.
type OrderItem struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	VendorID          *uuid.UUID       `gorm:"column:vendor_id;type:uuid"`
	ProductName       string           `gorm:"column:product_name;not null"`
	SKU               string           `gorm:"column:sku;not null"`
	Image             string           `gorm:"column:image"`
	Price             decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	CompareAtPrice    *decimal.Decimal `gorm:"column:compare_at_price;type:numeric(12,2)"`
	Quantity          int              `gorm:"column:quantity;not null"`
	StockAdjusted     bool             `gorm:"column:stock_adjusted;not null"`
	RestockedQuantity int              `gorm:"column:restocked_quantity;not null"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
