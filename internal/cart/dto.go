package cart

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Owner identifies a cart by exactly one of a customer id or a guest session id.
type Owner struct {
	CustomerID *uuid.UUID
	SessionID  *string
}

func CustomerOwner(id uuid.UUID) Owner {
	return Owner{CustomerID: &id}
}

func GuestOwner(sessionID string) Owner {
	return Owner{SessionID: &sessionID}
}

func (o Owner) validate() error {
	hasCustomer := o.CustomerID != nil && *o.CustomerID != uuid.Nil
	hasSession := o.SessionID != nil && strings.TrimSpace(*o.SessionID) != ""
	if hasCustomer == hasSession {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner must be exactly one of customer or guest session")
	}
	return nil
}

func (o Owner) cartType() enums.CartType {
	if o.CustomerID != nil {
		return enums.CartTypeCustomer
	}
	return enums.CartTypeGuest
}

// String renders the owner for logs.
func (o Owner) String() string {
	if o.CustomerID != nil {
		return "customer:" + o.CustomerID.String()
	}
	if o.SessionID != nil {
		return "session:" + *o.SessionID
	}
	return "unknown"
}

// ItemView is a cart line with its derived subtotal and current catalog labels.
type ItemView struct {
	ID             uuid.UUID        `json:"id"`
	ProductID      uuid.UUID        `json:"productId"`
	Name           string           `json:"name"`
	SKU            string           `json:"sku"`
	Image          string           `json:"image,omitempty"`
	Quantity       int              `json:"quantity"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice,omitempty"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
}

// View is the read model returned by every cart operation.
type View struct {
	ID        uuid.UUID       `json:"id"`
	Type      enums.CartType  `json:"type"`
	Items     []ItemView      `json:"items"`
	ItemCount int             `json:"itemCount"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Issue describes a cart line that would fail checkout right now.
type Issue struct {
	ProductID uuid.UUID             `json:"productId"`
	Reason    enums.CartIssueReason `json:"reason"`
	Requested int                   `json:"requested"`
	Available int                   `json:"available"`
}

// ValidationResult is advisory; order creation re-checks stock authoritatively.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

func buildView(cart *models.Cart, products map[uuid.UUID]models.Product) *View {
	view := &View{
		ID:        cart.ID,
		Type:      cart.Type,
		Items:     make([]ItemView, 0, len(cart.Items)),
		Total:     decimal.Zero,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		line := ItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			Price:          item.Price,
			CompareAtPrice: item.CompareAtPrice,
			Subtotal:       item.Subtotal(),
		}
		if product, ok := products[item.ProductID]; ok {
			line.Name = product.Name
			line.SKU = product.SKU
			if len(product.Images) > 0 {
				line.Image = product.Images[0]
			}
		}
		view.Items = append(view.Items, line)
		view.ItemCount += item.Quantity
		view.Total = view.Total.Add(line.Subtotal)
	}
	return view
}
