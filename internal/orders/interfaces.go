package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Repository defines persistence operations for orders, items and history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateItemsVendor(ctx context.Context, orderID uuid.UUID, vendorID *uuid.UUID) error
	AppendHistory(ctx context.Context, entry *models.OrderHistory) error
	List(ctx context.Context, params ListParams) (*pagination.Page[models.Order], error)
	Stats(ctx context.Context, filter StatsFilter) (*Stats, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type customerResolver interface {
	ResolveActive(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type addressResolver interface {
	SnapshotOwned(ctx context.Context, id, ownerID uuid.UUID) (types.AddressSnapshot, error)
}

type stockGuard interface {
	Decrement(ctx context.Context, tx *gorm.DB, product models.Product, qty int) (bool, error)
	RestoreOrderItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem, quantities map[uuid.UUID]int) (int, error)
}

type cartCheckout interface {
	ItemsForCheckout(ctx context.Context, tx *gorm.DB, owner cart.Owner) (*models.Cart, error)
	ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}
