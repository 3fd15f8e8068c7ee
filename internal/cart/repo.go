package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) ownerScope(owner Owner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.CustomerID != nil {
			return db.Where("customer_id = ? AND is_active = ?", *owner.CustomerID, true)
		}
		return db.Where("session_id = ? AND is_active = ?", *owner.SessionID, true)
	}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

// FindActive loads the owner's active cart with its items.
func (r *Repository) FindActive(ctx context.Context, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Scopes(r.ownerScope(owner)).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindActiveForUpdate loads the owner's active cart and locks its row for the
// remainder of the transaction.
func (r *Repository) FindActiveForUpdate(ctx context.Context, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", orderedItems).
		Scopes(r.ownerScope(owner)).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a new active cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.IsActive = true
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// Touch bumps updated_at so stale-cart cleanup measures inactivity from the last change.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		UpdateColumn("updated_at", r.db.NowFunc()).Error
}

// Delete removes a cart and its items.
func (r *Repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	if err := r.ClearItems(ctx, cartID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", cartID).Delete(&models.Cart{}).Error
}

// FindItem returns the line for productID in the cart.
func (r *Repository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemForUpdate loads a line and locks it until the transaction ends.
func (r *Repository) FindItemForUpdate(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItemQuantity changes only the quantity; the price snapshot is kept.
func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"quantity": qty, "updated_at": r.db.NowFunc()}).Error
}

// MoveItem re-homes an item into another cart.
func (r *Repository) MoveItem(ctx context.Context, itemID, toCartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"cart_id": toCartID, "updated_at": r.db.NowFunc()}).Error
}

// DeleteItem removes the line for productID and reports whether one existed.
func (r *Repository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) DeleteItemByID(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", itemID).Delete(&models.CartItem{}).Error
}

// ClearItems deletes every line in the cart.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// DeleteStaleGuestCarts removes up to limit guest carts untouched since cutoff,
// together with their items, and returns how many carts were deleted.
func (r *Repository) DeleteStaleGuestCarts(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("type = ? AND updated_at < ?", enums.CartTypeGuest, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.db.WithContext(ctx).Where("cart_id IN ?", ids).Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
