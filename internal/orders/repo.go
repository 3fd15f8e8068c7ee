package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("History").Create(order).Error
}

func itemsByCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", itemsByCreation).
		Preload("History", itemsByCreation).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate row-locks the order for the rest of the transaction.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", itemsByCreation).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateItemsVendor(ctx context.Context, orderID uuid.UUID, vendorID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ?", orderID).
		UpdateColumn("vendor_id", vendorID).Error
}

// AppendHistory is the only write path for order_history; entries are never updated.
func (r *repository) AppendHistory(ctx context.Context, entry *models.OrderHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (r *repository) filtered(ctx context.Context, params ListParams) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if params.CustomerID != nil {
		q = q.Where("customer_id = ?", *params.CustomerID)
	}
	if params.VendorID != nil {
		// Mixed-vendor orders carry no order-level vendor; match on lines.
		q = q.Where("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.vendor_id = ?)", *params.VendorID)
	}
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	}
	if params.PaymentStatus != nil {
		q = q.Where("payment_status = ?", *params.PaymentStatus)
	}
	if term := strings.ToLower(strings.TrimSpace(params.Search)); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		q = q.Where(`(LOWER(order_number) LIKE ? ESCAPE '\' OR LOWER(guest_email) LIKE ? ESCAPE '\' OR LOWER(guest_name) LIKE ? ESCAPE '\')`, like, like, like)
	}
	if params.CreatedFrom != nil {
		q = q.Where("created_at >= ?", params.CreatedFrom.UTC())
	}
	if params.CreatedTo != nil {
		q = q.Where("created_at < ?", params.CreatedTo.UTC())
	}
	return q
}

// List returns one keyset page of orders, newest first, with items preloaded.
func (r *repository) List(ctx context.Context, params ListParams) (*pagination.Page[models.Order], error) {
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, err
	}
	var rows []models.Order
	q := pagination.Apply(r.filtered(ctx, params), "", params.Pagination.Limit, cursor)
	if err := q.Preload("Items", itemsByCreation).Find(&rows).Error; err != nil {
		return nil, err
	}
	page := pagination.Trim(rows, params.Pagination.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}
