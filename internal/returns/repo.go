package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists return policies, requests and their items. Orders are
// read by id only.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) ReturnRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func byCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

func (r *Repository) CreatePolicy(ctx context.Context, policy *models.ReturnPolicy) error {
	return r.db.WithContext(ctx).Create(policy).Error
}

func (r *Repository) FindPolicy(ctx context.Context, id uuid.UUID) (*models.ReturnPolicy, error) {
	var policy models.ReturnPolicy
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&policy).Error; err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *Repository) FindDefaultPolicy(ctx context.Context) (*models.ReturnPolicy, error) {
	var policy models.ReturnPolicy
	err := r.db.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		First(&policy).Error
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// ClearDefault unsets every default flag. It must run before MarkDefault in
// the same transaction so the partial unique index never sees two defaults.
func (r *Repository) ClearDefault(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnPolicy{}).
		Where("is_default = ?", true).
		Updates(map[string]any{"is_default": false, "updated_at": r.db.NowFunc()}).Error
}

func (r *Repository) MarkDefault(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnPolicy{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_default": true, "updated_at": r.db.NowFunc()}).Error
}

// Create inserts the request together with its items.
func (r *Repository) Create(ctx context.Context, request *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Items", byCreation).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", byCreation).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// FindOrder loads the order a request refers to, with its items.
func (r *Repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", byCreation).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder row-locks the order so concurrent return requests for it serialise.
func (r *Repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", byCreation).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ReturnedQuantities sums item quantities already claimed by live requests on
// the order, keyed by order item id.
func (r *Repository) ReturnedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		OrderItemID uuid.UUID
		Quantity    int
	}
	err := r.db.WithContext(ctx).
		Table("return_items").
		Select("return_items.order_item_id AS order_item_id, SUM(return_items.quantity) AS quantity").
		Joins("JOIN return_requests ON return_requests.id = return_items.return_id").
		Where("return_requests.order_id = ?", orderID).
		Where("return_requests.status NOT IN ?", []enums.ReturnStatus{enums.ReturnStatusRejected, enums.ReturnStatusCancelled}).
		Group("return_items.order_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.OrderItemID] = row.Quantity
	}
	return out, nil
}

func (r *Repository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.ReturnRequest, error) {
	var requests []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Items", byCreation).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Find(&requests).Error
	return requests, err
}

// List returns one keyset page of requests, newest first.
func (r *Repository) List(ctx context.Context, params ListParams) (*pagination.Page[models.ReturnRequest], error) {
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).Model(&models.ReturnRequest{})
	if params.CustomerID != nil {
		q = q.Where("customer_id = ?", *params.CustomerID)
	}
	if params.OrderID != nil {
		q = q.Where("order_id = ?", *params.OrderID)
	}
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	}

	var rows []models.ReturnRequest
	if err := pagination.Apply(q, "", params.Pagination.Limit, cursor).Preload("Items", byCreation).Find(&rows).Error; err != nil {
		return nil, err
	}
	page := pagination.Trim(rows, params.Pagination.Limit, func(rr models.ReturnRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rr.CreatedAt, ID: rr.ID}
	})
	return &page, nil
}
