package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderHistory is an append-only audit entry.
type OrderHistory struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	Action    enums.OrderHistoryAction `gorm:"column:action;type:text;not null"`
	ActorKind enums.ActorKind          `gorm:"column:actor_kind;type:text;not null"`
	ActorID   string                   `gorm:"column:actor_id;not null"`
	OldValue  *string                  `gorm:"column:old_value"`
	NewValue  *string                  `gorm:"column:new_value"`
	Note      *string                  `gorm:"column:note"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (OrderHistory) TableName() string { return "order_history" }
