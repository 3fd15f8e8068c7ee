package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindActive(ctx context.Context, owner Owner) (*models.Cart, error)
	FindActiveForUpdate(ctx context.Context, owner Owner) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	Touch(ctx context.Context, cartID uuid.UUID) error
	Delete(ctx context.Context, cartID uuid.UUID) error

	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	FindItemForUpdate(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error
	MoveItem(ctx context.Context, itemID, toCartID uuid.UUID) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) (bool, error)
	DeleteItemByID(ctx context.Context, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error

	DeleteStaleGuestCarts(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type stockChecker interface {
	Check(product models.Product, qty int) error
}
