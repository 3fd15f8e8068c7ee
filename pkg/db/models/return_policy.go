package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type ReturnPolicy struct {
	ID                        uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Name                      string                    `gorm:"column:name;not null"`
	ReturnWindowDays          int                       `gorm:"column:return_window_days;not null"`
	RefundWindowDays          int                       `gorm:"column:refund_window_days;not null"`
	FreeReturnThreshold       *decimal.Decimal          `gorm:"column:free_return_threshold;type:numeric(12,2)"`
	RestockingFeePercentage   decimal.Decimal           `gorm:"column:restocking_fee_percentage;type:numeric(5,2);not null"`
	ReturnShippingPaidBy      enums.ReturnShippingPayer `gorm:"column:return_shipping_paid_by;type:text;not null"`
	ReturnShippingFee         decimal.Decimal           `gorm:"column:return_shipping_fee;type:numeric(12,2);not null"`
	RequiresRMA               bool                      `gorm:"column:requires_rma;not null"`
	AllowPartialReturns       bool                      `gorm:"column:allow_partial_returns;not null"`
	RequiresOriginalPackaging bool                      `gorm:"column:requires_original_packaging;not null"`
	IsDefault                 bool                      `gorm:"column:is_default;not null;index:ux_return_policies_default,unique,where:is_default = true"`
	IsActive                  bool                      `gorm:"column:is_active;not null"`
	CreatedAt                 time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
