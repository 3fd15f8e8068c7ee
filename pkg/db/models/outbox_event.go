package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OutboxEvent is an append-only notification queued in the same transaction as the mutation.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null"`
	LastError     *string                   `gorm:"column:last_error"`
}

// All lists every model, in dependency order, for AutoMigrate in tests and tooling.
func All() []any {
	return []any{
		&Product{},
		&Customer{},
		&Address{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&OrderHistory{},
		&ReturnPolicy{},
		&ReturnRequest{},
		&ReturnItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
