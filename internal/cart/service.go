package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Service exposes cart operations for customers and guest sessions.
type Service interface {
	GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error)
	Get(ctx context.Context, owner Owner) (*View, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*View, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, owner Owner) (*View, error)
	MergeGuestIntoCustomer(ctx context.Context, customerID uuid.UUID, sessionID string) (*View, error)
	Validate(ctx context.Context, owner Owner) (*ValidationResult, error)

	ItemsForCheckout(ctx context.Context, tx *gorm.DB, owner Owner) (*models.Cart, error)
	ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productReader
	stock    stockChecker
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productReader, stock stockChecker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock checker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		products: products,
		stock:    stock,
		logg:     logg,
	}, nil
}

// GetOrCreate returns the owner's active cart, creating it on first use. Two
// concurrent first uses race on the partial unique index; the loser reloads.
func (s *service) GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindActive(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{
		Type:       owner.cartType(),
		CustomerID: owner.CustomerID,
		SessionID:  owner.SessionID,
	})
	if err == nil {
		return created, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	cart, err = s.repo.FindActive(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart after create race")
	}
	return cart, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*View, error) {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// AddItem adds qty units, summing with any existing line. Stock is checked
// against the summed quantity; new lines snapshot the current price.
func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*View, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.stock.Check(*product, qty); err != nil {
		return nil, err
	}

	err = s.addLine(ctx, cart.ID, product, qty)
	if errors.Is(err, errLineRaced) {
		// Another request created the line first; the retry sums into it.
		err = s.addLine(ctx, cart.ID, product, qty)
	}
	if errors.Is(err, errLineRaced) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart item was added concurrently")
	}
	if err != nil {
		return nil, err
	}

	return s.reload(ctx, owner)
}

var errLineRaced = errors.New("cart line created concurrently")

// addLine sums qty into the product's line, creating it when absent.
func (s *service) addLine(ctx context.Context, cartID uuid.UUID, product *models.Product, qty int) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		existing, err := txRepo.FindItemForUpdate(ctx, cartID, product.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if existing != nil {
			total := existing.Quantity + qty
			if err := s.stock.Check(*product, total); err != nil {
				return err
			}
			if err := txRepo.UpdateItemQuantity(ctx, existing.ID, total); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		} else {
			item := pricing.Take(*product).CartItem(cartID, qty)
			if err := txRepo.CreateItem(ctx, &item); err != nil {
				if db.IsUniqueViolation(err, "ux_cart_items_cart_product") {
					return errLineRaced
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		}
		if err := txRepo.Touch(ctx, cartID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
		}
		return nil
	})
}

// UpdateItemQuantity sets the line quantity without re-taking the price snapshot.
func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*View, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, owner, productID)
	}
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.stock.Check(*product, qty); err != nil {
		return nil, err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item, err := txRepo.FindItem(ctx, cart.ID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("cart_item", productID.String())
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if err := txRepo.UpdateItemQuantity(ctx, item.ID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return txRepo.Touch(ctx, cart.ID)
	}); err != nil {
		return nil, err
	}

	return s.reload(ctx, owner)
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID) (*View, error) {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	removed, err := s.repo.DeleteItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if !removed {
		return nil, pkgerrors.NotFound("cart_item", productID.String())
	}
	if err := s.repo.Touch(ctx, cart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}
	return s.reload(ctx, owner)
}

// Clear empties the cart but keeps the cart row.
func (s *service) Clear(ctx context.Context, owner Owner) (*View, error) {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	if err := s.repo.Touch(ctx, cart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}
	return s.reload(ctx, owner)
}

// MergeGuestIntoCustomer folds the guest session cart into the customer's cart.
// Shared products have their quantities summed, other lines are re-homed, and
// the guest cart is deleted. Both carts are row-locked for the whole merge.
func (s *service) MergeGuestIntoCustomer(ctx context.Context, customerID uuid.UUID, sessionID string) (*View, error) {
	customer := CustomerOwner(customerID)
	guest := GuestOwner(sessionID)
	if err := customer.validate(); err != nil {
		return nil, err
	}
	if err := guest.validate(); err != nil {
		return nil, err
	}

	target, err := s.GetOrCreate(ctx, customer)
	if err != nil {
		return nil, err
	}

	merged, moved := 0, 0
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		customerCart, err := txRepo.FindActiveForUpdate(ctx, customer)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock customer cart")
		}
		guestCart, err := txRepo.FindActiveForUpdate(ctx, guest)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock guest cart")
		}

		existing := make(map[uuid.UUID]models.CartItem, len(customerCart.Items))
		for _, item := range customerCart.Items {
			existing[item.ProductID] = item
		}

		for _, item := range guestCart.Items {
			if current, ok := existing[item.ProductID]; ok {
				if err := txRepo.UpdateItemQuantity(ctx, current.ID, current.Quantity+item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum merged item")
				}
				if err := txRepo.DeleteItemByID(ctx, item.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop merged guest item")
				}
				merged++
				continue
			}
			if err := txRepo.MoveItem(ctx, item.ID, customerCart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move guest item")
			}
			moved++
		}

		if err := txRepo.Delete(ctx, guestCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete guest cart")
		}
		return txRepo.Touch(ctx, customerCart.ID)
	}); err != nil {
		return nil, err
	}

	if merged+moved > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"cart_id":      target.ID.String(),
			"merged_lines": merged,
			"moved_lines":  moved,
		})
		s.logg.Info(logCtx, "guest cart merged into customer cart")
	}
	return s.reload(ctx, customer)
}

// Validate reports every line that would fail checkout now. It never mutates.
func (s *service) Validate(ctx context.Context, owner Owner) (*ValidationResult, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	result := &ValidationResult{Valid: true, Issues: []Issue{}}
	cart, err := s.repo.FindActive(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	products, err := s.products.GetProducts(ctx, productIDs(cart.Items))
	if err != nil {
		return nil, err
	}
	for _, item := range cart.Items {
		issue := Issue{ProductID: item.ProductID, Requested: item.Quantity}
		product, ok := products[item.ProductID]
		if !ok {
			issue.Reason = enums.CartIssueProductMissing
			result.Issues = append(result.Issues, issue)
			continue
		}
		issue.Available = product.Stock
		err := s.stock.Check(product, item.Quantity)
		switch {
		case err == nil:
			continue
		case pkgerrors.IsCode(err, pkgerrors.CodeProductUnavailable):
			issue.Reason = enums.CartIssueProductUnavailable
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			issue.Reason = enums.CartIssueInsufficientStock
		default:
			return nil, err
		}
		result.Issues = append(result.Issues, issue)
	}
	result.Valid = len(result.Issues) == 0
	return result, nil
}

// ItemsForCheckout loads the owner's cart inside the order transaction.
func (s *service) ItemsForCheckout(ctx context.Context, tx *gorm.DB, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.WithTx(tx).FindActiveForUpdate(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart for checkout")
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return cart, nil
}

// ClearTx empties the cart in the caller's transaction.
func (s *service) ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if err := s.repo.WithTx(tx).ClearItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart after checkout")
	}
	return nil
}

func (s *service) reload(ctx context.Context, owner Owner) (*View, error) {
	cart, err := s.repo.FindActive(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return s.view(ctx, cart)
}

func (s *service) view(ctx context.Context, cart *models.Cart) (*View, error) {
	products, err := s.products.GetProducts(ctx, productIDs(cart.Items))
	if err != nil {
		return nil, err
	}
	return buildView(cart, products), nil
}

func productIDs(items []models.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
