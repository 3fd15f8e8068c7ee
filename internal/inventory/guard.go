// Package inventory owns every stock mutation so the insufficient-stock rule lives in one place.
package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Guard validates availability and performs atomic stock adjustments.
type Guard struct {
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
}

func NewGuard(logg *logger.Logger, m *metrics.EngineMetrics) *Guard {
	return &Guard{logg: logg, metrics: m}
}

// Check is the advisory availability rule shared by cart and order flows.
func (g *Guard) Check(product models.Product, qty int) error {
	if !product.IsAvailable() {
		g.reject("unavailable")
		return pkgerrors.ProductUnavailable(product.ID.String())
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if product.TrackQuantity && !product.AllowBackorder && product.Stock < qty {
		g.reject("insufficient")
		return pkgerrors.InsufficientStock(product.ID.String(), qty, product.Stock)
	}
	return nil
}

// Decrement removes qty units in a single conditional update. It reports
// whether the stock counter was touched; untracked products are left alone.
func (g *Guard) Decrement(ctx context.Context, tx *gorm.DB, product models.Product, qty int) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock decrement")
	}
	if err := g.Check(product, qty); err != nil {
		return false, err
	}
	if !product.TrackQuantity {
		return false, nil
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND track_quantity = ? AND (allow_backorder = ? OR stock >= ?)", product.ID, true, true, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		available, err := g.currentStock(ctx, tx, product.ID)
		if err != nil {
			return false, err
		}
		g.reject("insufficient")
		return false, pkgerrors.InsufficientStock(product.ID.String(), qty, available)
	}
	return true, nil
}

// Increment puts qty units back on a product.
func (g *Guard) Increment(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock increment")
	}
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment stock")
	}
	return nil
}

// RestoreOrderItems is the single restore path for cancellations, admin
// refunds and return refunds. quantities maps order item id to the units to
// restore; a nil map restores everything not yet restocked. Each item's
// restocked_quantity caps the total so a unit is never credited twice.
// It returns the number of units credited.
func (g *Guard) RestoreOrderItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem, quantities map[uuid.UUID]int) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock restore")
	}
	ordered := make([]models.OrderItem, len(items))
	copy(ordered, items)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ProductID.String() < ordered[j].ProductID.String()
	})

	restored := 0
	for _, item := range ordered {
		remaining := item.Quantity - item.RestockedQuantity
		qty := remaining
		if quantities != nil {
			requested, ok := quantities[item.ID]
			if !ok {
				continue
			}
			if requested < qty {
				qty = requested
			}
		}
		if qty <= 0 {
			continue
		}

		res := tx.WithContext(ctx).
			Model(&models.OrderItem{}).
			Where("id = ? AND restocked_quantity + ? <= quantity", item.ID, qty).
			UpdateColumn("restocked_quantity", gorm.Expr("restocked_quantity + ?", qty))
		if res.Error != nil {
			return restored, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "advance restocked quantity")
		}
		if res.RowsAffected == 0 {
			return restored, pkgerrors.New(pkgerrors.CodeStateConflict, "order item already restocked").
				WithDetails(pkgerrors.EntityDetails{Entity: "order_item", Key: item.ID.String()})
		}

		if item.StockAdjusted {
			if err := g.Increment(ctx, tx, item.ProductID, qty); err != nil {
				return restored, err
			}
		}
		restored += qty
	}

	if restored > 0 && g.logg != nil {
		logCtx := g.logg.WithFields(ctx, map[string]any{"units": restored, "items": len(items)})
		g.logg.Info(logCtx, "stock restored for order items")
	}
	return restored, nil
}

func (g *Guard) currentStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error) {
	var product models.Product
	err := tx.WithContext(ctx).Select("id", "stock").Where("id = ?", productID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.NotFound("product", productID.String())
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
	}
	return product.Stock, nil
}

func (g *Guard) reject(reason string) {
	g.metrics.IncStockRejection(reason)
}
