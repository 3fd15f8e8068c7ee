package returns

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ReturnRepository is the persistence contract used by the return service.
type ReturnRepository interface {
	WithTx(tx *gorm.DB) ReturnRepository
	CreatePolicy(ctx context.Context, policy *models.ReturnPolicy) error
	FindPolicy(ctx context.Context, id uuid.UUID) (*models.ReturnPolicy, error)
	FindDefaultPolicy(ctx context.Context) (*models.ReturnPolicy, error)
	ClearDefault(ctx context.Context) error
	MarkDefault(ctx context.Context, id uuid.UUID) error
	Create(ctx context.Context, request *models.ReturnRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ReturnedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.ReturnRequest, error)
	List(ctx context.Context, params ListParams) (*pagination.Page[models.ReturnRequest], error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderBooker reserves and books return refunds on the order inside the
// caller's tx.
type orderBooker interface {
	ReserveReturnRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	ApplyReturnRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal, actor types.Actor, returnNumber string) error
}

type stockRestorer interface {
	RestoreOrderItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem, quantities map[uuid.UUID]int) (int, error)
}
