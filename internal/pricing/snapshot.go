// Package pricing captures the immutable price facts copied onto cart and order lines.
package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Snapshot is a value copy of a product's sale-time facts.
type Snapshot struct {
	ProductID      uuid.UUID
	VendorID       *uuid.UUID
	Name           string
	SKU            string
	Image          string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
}

// Take copies the product's current price, compare price, name, SKU and lead image.
func Take(product models.Product) Snapshot {
	snap := Snapshot{
		ProductID: product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		Price:     product.Price,
	}
	if product.VendorID != nil {
		vendor := *product.VendorID
		snap.VendorID = &vendor
	}
	if product.CompareAtPrice != nil {
		compare := *product.CompareAtPrice
		snap.CompareAtPrice = &compare
	}
	if len(product.Images) > 0 {
		snap.Image = product.Images[0]
	}
	return snap
}

func (s Snapshot) Subtotal(qty int) decimal.Decimal {
	return s.Price.Mul(decimal.NewFromInt(int64(qty)))
}

// OrderItem builds an order line from the snapshot.
func (s Snapshot) OrderItem(orderID uuid.UUID, qty int) models.OrderItem {
	return models.OrderItem{
		OrderID:        orderID,
		ProductID:      s.ProductID,
		VendorID:       s.VendorID,
		ProductName:    s.Name,
		SKU:            s.SKU,
		Image:          s.Image,
		Price:          s.Price,
		CompareAtPrice: s.CompareAtPrice,
		Quantity:       qty,
	}
}

// CartItem builds a cart line carrying only the price fields.
func (s Snapshot) CartItem(cartID uuid.UUID, qty int) models.CartItem {
	return models.CartItem{
		CartID:         cartID,
		ProductID:      s.ProductID,
		Quantity:       qty,
		Price:          s.Price,
		CompareAtPrice: s.CompareAtPrice,
	}
}
