package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/numbering"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	CreateManual(ctx context.Context, input ManualOrderInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor types.Actor, note string) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, target enums.PaymentStatus, actor types.Actor, note string) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor types.Actor, reason string) (*models.Order, error)
	AddNote(ctx context.Context, orderID uuid.UUID, actor types.Actor, note string) (*models.Order, error)
	ReassignVendor(ctx context.Context, orderID, vendorID uuid.UUID, actor types.Actor, note string) (*models.Order, error)
	ProcessRefund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string, actor types.Actor) (*models.Order, error)
	ReserveReturnRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	ApplyReturnRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal, actor types.Actor, returnNumber string) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForCustomer(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*pagination.Page[models.Order], error)
	Stats(ctx context.Context, filter StatsFilter) (*Stats, error)
}

// ServiceParams bundles the dependencies required to build the order service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Customers customerResolver
	Addresses addressResolver
	Catalog   catalog.Reader
	Stock     stockGuard
	Carts     cartCheckout
	Numbers   numbering.Generator
	Refunder  payments.Refunder
	Metrics   *metrics.EngineMetrics
	Logger    *logger.Logger
	Clock     func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	customers customerResolver
	addresses addressResolver
	catalog   catalog.Reader
	stock     stockGuard
	carts     cartCheckout
	numbers   numbering.Generator
	refunder  payments.Refunder
	metrics   *metrics.EngineMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Customers == nil:
		return nil, fmt.Errorf("customer resolver required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address resolver required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog reader required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock guard required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart checkout required")
	case params.Numbers == nil:
		return nil, fmt.Errorf("number generator required")
	case params.Refunder == nil:
		return nil, fmt.Errorf("refunder required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		customers: params.Customers,
		addresses: params.Addresses,
		catalog:   params.Catalog,
		stock:     params.Stock,
		carts:     params.Carts,
		numbers:   params.Numbers,
		refunder:  params.Refunder,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       clock,
	}, nil
}

// Create places a customer or guest order from explicit items or the owner's cart.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}
	if err := validateCharges(input.Charges); err != nil {
		return nil, err
	}
	method, err := paymentMethodOrDefault(input.PaymentMethod, enums.PaymentMethodCard)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: method,
		CouponCode:    optional(input.Charges.CouponCode),
		Notes:         optional(input.Notes),
		CreatedByKind: input.Actor.Kind,
		CreatedByID:   input.Actor.ID,
	}

	var owner *cart.Owner
	switch {
	case input.CustomerID != nil && input.Guest != nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order cannot have both a customer and guest details")
	case input.CustomerID != nil:
		if input.Actor.Kind == enums.ActorGuest {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "guests cannot order for a customer account")
		}
		if actorID, ok := input.Actor.CustomerID(); input.Actor.IsCustomer() && (!ok || actorID != *input.CustomerID) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers can only order for themselves")
		}
		if _, err := s.customers.ResolveActive(ctx, *input.CustomerID); err != nil {
			return nil, err
		}
		order.CustomerID = input.CustomerID
		if len(input.Items) == 0 {
			o := cart.CustomerOwner(*input.CustomerID)
			owner = &o
		}
	case input.Guest != nil:
		guest, err := normalizeGuest(*input.Guest)
		if err != nil {
			return nil, err
		}
		order.GuestEmail = &guest.Email
		order.GuestName = &guest.Name
		order.GuestPhone = optional(&guest.Phone)
		if len(input.Items) == 0 {
			if input.SessionID == nil || strings.TrimSpace(*input.SessionID) == "" {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest checkout needs items or a session cart")
			}
			o := cart.GuestOwner(*input.SessionID)
			owner = &o
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id or guest details are required")
	}

	shipping, billing, err := s.resolveAddresses(ctx, order.CustomerID, input.Addresses)
	if err != nil {
		return nil, err
	}
	order.ShippingAddress = shipping
	order.BillingAddress = billing

	return s.place(ctx, order, input.Items, owner, input.Charges, input.Actor, "checkout")
}

// CreateManual places an admin-entered order for an existing customer.
func (s *service) CreateManual(ctx context.Context, input ManualOrderInput) (*models.Order, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "manual orders require an admin")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual orders need at least one item")
	}
	if err := validateCharges(input.Charges); err != nil {
		return nil, err
	}
	method, err := paymentMethodOrDefault(input.PaymentMethod, enums.PaymentMethodManual)
	if err != nil {
		return nil, err
	}

	status := enums.OrderStatusConfirmed
	if input.Status != nil {
		status = *input.Status
	}
	if status != enums.OrderStatusPending && status != enums.OrderStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual orders start as PENDING or CONFIRMED")
	}
	paymentStatus := enums.PaymentStatusPending
	if input.PaymentStatus != nil {
		paymentStatus = *input.PaymentStatus
	}
	if paymentStatus != enums.PaymentStatusPending && paymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual orders start as payment PENDING or PAID")
	}

	if _, err := s.customers.ResolveActive(ctx, input.CustomerID); err != nil {
		return nil, err
	}
	customerID := input.CustomerID
	shipping, billing, err := s.resolveAddresses(ctx, &customerID, input.Addresses)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerID:      &customerID,
		Status:          status,
		PaymentStatus:   paymentStatus,
		PaymentMethod:   method,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		CouponCode:      optional(input.Charges.CouponCode),
		Notes:           optional(input.Notes),
		CreatedByKind:   input.Actor.Kind,
		CreatedByID:     input.Actor.ID,
	}
	if paymentStatus == enums.PaymentStatusPaid {
		paidAt := s.now()
		order.PaidAt = &paidAt
	}
	return s.place(ctx, order, input.Items, nil, input.Charges, input.Actor, "manual")
}

// place runs the shared creation algorithm: reserve stock per line, snapshot
// prices, compute totals, persist the order with its first history entry and
// event, and clear the source cart. Any failure rolls back the stock decrements.
func (s *service) place(ctx context.Context, order *models.Order, requests []ItemRequest, owner *cart.Owner, charges Charges, actor types.Actor, source string) (*models.Order, error) {
	number, err := s.numbers.Next(ctx, numbering.KindOrder)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate order number")
	}
	order.ID = uuid.New()
	order.OrderNumber = number

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var cartID *uuid.UUID
		if owner != nil {
			checkoutCart, err := s.carts.ItemsForCheckout(ctx, tx, *owner)
			if err != nil {
				return err
			}
			cartID = &checkoutCart.ID
			requests = requestsFromCart(checkoutCart.Items)
		}
		lines, err := normalizeRequests(requests)
		if err != nil {
			return err
		}

		items, err := s.reserveItems(ctx, tx, order.ID, lines)
		if err != nil {
			return err
		}
		totals, err := Compute(items, charges)
		if err != nil {
			return err
		}
		totals.apply(order)
		order.Items = items
		order.VendorID = sharedVendor(items)

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "ux_orders_order_number") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order number already issued").
					WithDetails(pkgerrors.EntityDetails{Entity: "order", Key: order.OrderNumber})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.record(ctx, repo, order.ID, enums.HistoryOrderCreated, actor, nil, ptr(string(order.Status)), order.Notes); err != nil {
			return err
		}

		vendorIDs := vendorSet(items)
		if err := s.emit(ctx, tx, enums.EventOrderCreated, order.ID, actor, payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerID:    order.CustomerID,
			GuestEmail:    order.GuestEmail,
			VendorIDs:     vendorIDs,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			FinalAmount:   order.FinalAmount,
			ItemCount:     len(items),
		}); err != nil {
			return err
		}

		if cartID != nil {
			return s.carts.ClearTx(ctx, tx, *cartID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrderCreated(source)
	logCtx := s.logg.WithActor(s.logg.WithOrderID(ctx, order.ID.String()), string(actor.Kind), actor.ID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"order_number": order.OrderNumber,
		"source":       source,
		"final_amount": order.FinalAmount.StringFixed(moneyPlaces),
	})
	s.logg.Info(logCtx, "order created")
	return s.Get(ctx, order.ID)
}

// reserveItems decrements stock in product-id order so concurrent orders lock
// rows consistently, then builds order lines in request order.
func (s *service) reserveItems(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, lines []ItemRequest) ([]models.OrderItem, error) {
	reader := s.catalog.WithTx(tx)
	sorted := make([]ItemRequest, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})

	built := make(map[uuid.UUID]models.OrderItem, len(lines))
	for _, line := range sorted {
		product, err := reader.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		adjusted, err := s.stock.Decrement(ctx, tx, *product, line.Quantity)
		if err != nil {
			return nil, err
		}
		item := pricing.Take(*product).OrderItem(orderID, line.Quantity)
		item.ID = uuid.New()
		item.StockAdjusted = adjusted
		built[line.ProductID] = item
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, built[line.ProductID])
	}
	return items, nil
}

func (s *service) resolveAddresses(ctx context.Context, customerID *uuid.UUID, in Addresses) (types.AddressSnapshot, types.AddressSnapshot, error) {
	shipping, err := s.resolveAddress(ctx, customerID, in.ShippingAddressID, in.ShippingAddress, "shipping")
	if err != nil {
		return types.AddressSnapshot{}, types.AddressSnapshot{}, err
	}
	if in.BillingSameAsShipping || (in.BillingAddressID == nil && in.BillingAddress == nil) {
		return shipping, shipping, nil
	}
	billing, err := s.resolveAddress(ctx, customerID, in.BillingAddressID, in.BillingAddress, "billing")
	if err != nil {
		return types.AddressSnapshot{}, types.AddressSnapshot{}, err
	}
	return shipping, billing, nil
}

func (s *service) resolveAddress(ctx context.Context, customerID, addressID *uuid.UUID, inline *types.AddressSnapshot, kind string) (types.AddressSnapshot, error) {
	switch {
	case addressID != nil && inline != nil:
		return types.AddressSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, kind+" address must be an id or inline, not both")
	case addressID != nil:
		if customerID == nil {
			return types.AddressSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "guest orders must use inline addresses")
		}
		return s.addresses.SnapshotOwned(ctx, *addressID, *customerID)
	case inline != nil:
		if err := inline.Validate(); err != nil {
			return types.AddressSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+kind+" address")
		}
		return *inline, nil
	default:
		return types.AddressSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, kind+" address is required")
	}
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err, orderID)
	}
	return order, nil
}

// GetForCustomer loads the order only when it belongs to customerID.
func (s *service) GetForCustomer(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID == nil || *order.CustomerID != customerID {
		return nil, pkgerrors.Ownership("order", orderID.String())
	}
	return order, nil
}

func (s *service) record(ctx context.Context, repo Repository, orderID uuid.UUID, action enums.OrderHistoryAction, actor types.Actor, oldValue, newValue, note *string) error {
	entry := &models.OrderHistory{
		OrderID:   orderID,
		Action:    action,
		ActorKind: actor.Kind,
		ActorID:   actor.ID,
		OldValue:  oldValue,
		NewValue:  newValue,
		Note:      note,
	}
	if err := repo.AppendHistory(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, orderID uuid.UUID, actor types.Actor, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &actor,
		Data:          data,
		OccurredAt:    s.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
	}
	return nil
}

func mapLoadError(err error, orderID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("order", orderID.String())
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func paymentMethodOrDefault(method, fallback enums.PaymentMethod) (enums.PaymentMethod, error) {
	if method == "" {
		return fallback, nil
	}
	if !method.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	return method, nil
}

var guestValidator = validator.New()

func normalizeGuest(guest GuestInfo) (GuestInfo, error) {
	guest.Email = strings.ToLower(strings.TrimSpace(guest.Email))
	guest.Name = strings.TrimSpace(guest.Name)
	guest.Phone = strings.TrimSpace(guest.Phone)
	if err := guestValidator.Var(guest.Email, "required,email"); err != nil {
		return GuestInfo{}, pkgerrors.New(pkgerrors.CodeValidation, "guest email is invalid")
	}
	if guest.Name == "" {
		return GuestInfo{}, pkgerrors.New(pkgerrors.CodeValidation, "guest name is required")
	}
	return guest, nil
}

// normalizeRequests merges repeated products and rejects empty or non-positive lines.
func normalizeRequests(requests []ItemRequest) ([]ItemRequest, error) {
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	index := make(map[uuid.UUID]int, len(requests))
	lines := make([]ItemRequest, 0, len(requests))
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if req.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if i, ok := index[req.ProductID]; ok {
			lines[i].Quantity += req.Quantity
			continue
		}
		index[req.ProductID] = len(lines)
		lines = append(lines, req)
	}
	return lines, nil
}

func requestsFromCart(items []models.CartItem) []ItemRequest {
	requests := make([]ItemRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return requests
}

// sharedVendor is the order-level vendor: set only when every line has the same one.
func sharedVendor(items []models.OrderItem) *uuid.UUID {
	var shared *uuid.UUID
	for _, item := range items {
		if item.VendorID == nil {
			return nil
		}
		if shared == nil {
			v := *item.VendorID
			shared = &v
			continue
		}
		if *shared != *item.VendorID {
			return nil
		}
	}
	return shared
}

func vendorSet(items []models.OrderItem) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	var out []uuid.UUID
	for _, item := range items {
		if item.VendorID == nil {
			continue
		}
		if _, ok := seen[*item.VendorID]; ok {
			continue
		}
		seen[*item.VendorID] = struct{}{}
		out = append(out, *item.VendorID)
	}
	return out
}

func optional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func ptr[T any](v T) *T {
	return &v
}
