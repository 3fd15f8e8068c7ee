package orders

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/addressbook"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/customers"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/numbering"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type fixture struct {
	svc     Service
	carts   cart.Service
	client  *db.Client
	conn    *gorm.DB
	gateway *payments.RecordingGateway
	admin   types.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	guard := inventory.NewGuard(nil, nil)
	products := catalog.NewRepository(conn)

	carts, err := cart.NewService(cart.NewRepository(conn), client, products, guard, logg)
	require.NoError(t, err)

	gateway := payments.NewRecordingGateway(nil)
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Tx:        client,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Customers: customers.NewRepository(conn),
		Addresses: addressbook.NewRepository(conn),
		Catalog:   products,
		Stock:     guard,
		Carts:     carts,
		Numbers:   numbering.NewULIDGenerator(numbering.Prefixes{numbering.KindOrder: "ORD", numbering.KindReturn: "RET"}, nil, nil),
		Refunder:  gateway,
		Logger:    logg,
	})
	require.NoError(t, err)

	return &fixture{svc: svc, carts: carts, client: client, conn: conn, gateway: gateway, admin: types.AdminActor(uuid.New())}
}

func (f *fixture) product(t *testing.T, price string, stock int, vendor *uuid.UUID) models.Product {
	t.Helper()
	p := models.Product{
		VendorID:      vendor,
		Name:          "Product " + uuid.NewString()[:6],
		SKU:           "SKU-" + uuid.NewString()[:8],
		Price:         dec(price),
		Images:        []string{"https://cdn.example.com/p.jpg"},
		Stock:         stock,
		TrackQuantity: true,
		IsActive:      true,
		IsPublished:   true,
	}
	require.NoError(t, f.conn.Create(&p).Error)
	return p
}

func (f *fixture) customer(t *testing.T) models.Customer {
	t.Helper()
	c := models.Customer{Email: uuid.NewString()[:8] + "@example.com", FullName: "Dana Buyer", IsActive: true}
	require.NoError(t, f.conn.Create(&c).Error)
	return c
}

func (f *fixture) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", productID).Error)
	return p.Stock
}

func (f *fixture) countEvents(t *testing.T, aggregateID uuid.UUID, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", aggregateID, eventType).
		Count(&n).Error)
	return n
}

func (f *fixture) customerOrder(t *testing.T, customerID uuid.UUID, items ...ItemRequest) *models.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), CreateOrderInput{
		Actor:      types.CustomerActor(customerID),
		CustomerID: &customerID,
		Items:      items,
		Addresses:  Addresses{ShippingAddress: shippingAddress()},
		Charges:    Charges{Shipping: dec("5")},
	})
	require.NoError(t, err)
	return order
}

func shippingAddress() *types.AddressSnapshot {
	return &types.AddressSnapshot{
		FullName:    "Dana Buyer",
		Phone:       "+15550100",
		AddressLine: "12 Harbor Road",
		City:        "Portsmouth",
	}
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s got %s", want, got.String())
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateFromCartReservesStockAndClearsCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	vendor := uuid.New()
	product := f.product(t, "25.00", 10, &vendor)
	buyer := f.customer(t)

	owner := cart.CustomerOwner(buyer.ID)
	_, err := f.carts.AddItem(ctx, owner, product.ID, 2)
	require.NoError(t, err)

	order := f.customerOrder(t, buyer.ID)

	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, enums.PaymentMethodCard, order.PaymentMethod)
	requireAmount(t, "50", order.TotalAmount)
	requireAmount(t, "55", order.FinalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Items[0].StockAdjusted)
	require.NotNil(t, order.Items[0].VendorID)
	assert.Equal(t, vendor, *order.Items[0].VendorID)
	require.NotNil(t, order.VendorID)
	assert.Equal(t, vendor, *order.VendorID)
	require.Len(t, order.History, 1)
	assert.Equal(t, enums.HistoryOrderCreated, order.History[0].Action)

	assert.Equal(t, 8, f.stock(t, product.ID))
	assert.Equal(t, int64(1), f.countEvents(t, order.ID, enums.EventOrderCreated))

	view, err := f.carts.Get(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCreateWithEmptyCartFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	buyer := f.customer(t)

	_, err := f.svc.Create(context.Background(), CreateOrderInput{
		Actor:      types.CustomerActor(buyer.ID),
		CustomerID: &buyer.ID,
		Addresses:  Addresses{ShippingAddress: shippingAddress()},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateRollsBackEveryLineWhenOneFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	plenty := f.product(t, "10.00", 5, nil)
	scarce := f.product(t, "10.00", 1, nil)
	buyer := f.customer(t)

	_, err := f.svc.Create(context.Background(), CreateOrderInput{
		Actor:      types.CustomerActor(buyer.ID),
		CustomerID: &buyer.ID,
		Items: []ItemRequest{
			{ProductID: plenty.ID, Quantity: 2},
			{ProductID: scarce.ID, Quantity: 3},
		},
		Addresses: Addresses{ShippingAddress: shippingAddress()},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	assert.Equal(t, 5, f.stock(t, plenty.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))
	var orders int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestCreateMergesRepeatedProducts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	product := f.product(t, "3.00", 10, nil)
	buyer := f.customer(t)

	order := f.customerOrder(t, buyer.ID,
		ItemRequest{ProductID: product.ID, Quantity: 2},
		ItemRequest{ProductID: product.ID, Quantity: 1},
	)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, 7, f.stock(t, product.ID))
}

func TestCreateRejectsCustomerOrderingForSomeoneElse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	product := f.product(t, "3.00", 10, nil)
	buyer := f.customer(t)

	_, err := f.svc.Create(context.Background(), CreateOrderInput{
		Actor:      types.CustomerActor(uuid.New()),
		CustomerID: &buyer.ID,
		Items:      []ItemRequest{{ProductID: product.ID, Quantity: 1}},
		Addresses:  Addresses{ShippingAddress: shippingAddress()},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCreateUsesSavedAddressSnapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "3.00", 10, nil)
	buyer := f.customer(t)
	address := models.Address{UserID: buyer.ID, FullName: "Dana Buyer", Phone: "+15550100", AddressLine: "1 Elm", City: "Leeds"}
	require.NoError(t, f.conn.Create(&address).Error)

	order, err := f.svc.Create(ctx, CreateOrderInput{
		Actor:      types.CustomerActor(buyer.ID),
		CustomerID: &buyer.ID,
		Items:      []ItemRequest{{ProductID: product.ID, Quantity: 1}},
		Addresses:  Addresses{ShippingAddressID: &address.ID, BillingSameAsShipping: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Leeds", order.ShippingAddress.City)
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)

	// Editing the address book never touches the order's copy.
	require.NoError(t, f.conn.Model(&address).Update("city", "York").Error)
	reloaded, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leeds", reloaded.ShippingAddress.City)

	stranger := f.customer(t)
	_, err = f.svc.Create(ctx, CreateOrderInput{
		Actor:      types.CustomerActor(stranger.ID),
		CustomerID: &stranger.ID,
		Items:      []ItemRequest{{ProductID: product.ID, Quantity: 1}},
		Addresses:  Addresses{ShippingAddressID: &address.ID},
	})
	require.Error(t, err)
}

func TestGuestCheckoutFromSessionCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "8.00", 4, nil)
	session := "sess-" + uuid.NewString()

	_, err := f.carts.AddItem(ctx, cart.GuestOwner(session), product.ID, 3)
	require.NoError(t, err)

	order, err := f.svc.Create(ctx, CreateOrderInput{
		Actor:     types.GuestActor(session),
		Guest:     &GuestInfo{Email: "  Guest@Example.COM ", Name: "Sam Guest"},
		SessionID: &session,
		Addresses: Addresses{ShippingAddress: shippingAddress()},
	})
	require.NoError(t, err)
	assert.Nil(t, order.CustomerID)
	require.NotNil(t, order.GuestEmail)
	assert.Equal(t, "guest@example.com", *order.GuestEmail)
	assert.Equal(t, enums.ActorGuest, order.CreatedByKind)
	requireAmount(t, "24", order.FinalAmount)
	assert.Equal(t, 1, f.stock(t, product.ID))

	_, err = f.svc.Create(ctx, CreateOrderInput{
		Actor:     types.GuestActor(session),
		Guest:     &GuestInfo{Email: "not-an-email", Name: "Sam"},
		Items:     []ItemRequest{{ProductID: product.ID, Quantity: 1}},
		Addresses: Addresses{ShippingAddress: shippingAddress()},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateManualOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "40.00", 3, nil)
	buyer := f.customer(t)
	paid := enums.PaymentStatusPaid

	order, err := f.svc.CreateManual(ctx, ManualOrderInput{
		Actor:         f.admin,
		CustomerID:    buyer.ID,
		Items:         []ItemRequest{{ProductID: product.ID, Quantity: 1}},
		Addresses:     Addresses{ShippingAddress: shippingAddress()},
		PaymentStatus: &paid,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, enums.PaymentMethodManual, order.PaymentMethod)
	assert.NotNil(t, order.PaidAt)
	assert.Equal(t, enums.ActorAdmin, order.CreatedByKind)
	assert.Equal(t, 2, f.stock(t, product.ID))

	_, err = f.svc.CreateManual(ctx, ManualOrderInput{
		Actor:      types.CustomerActor(buyer.ID),
		CustomerID: buyer.ID,
		Items:      []ItemRequest{{ProductID: product.ID, Quantity: 1}},
		Addresses:  Addresses{ShippingAddress: shippingAddress()},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	shipped := enums.OrderStatusShipped
	_, err = f.svc.CreateManual(ctx, ManualOrderInput{
		Actor:      f.admin,
		CustomerID: buyer.ID,
		Items:      []ItemRequest{{ProductID: product.ID, Quantity: 1}},
		Addresses:  Addresses{ShippingAddress: shippingAddress()},
		Status:     &shipped,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStatusLifecycleStampsTimestampsAndHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "10.00", 5, nil)
	buyer := f.customer(t)
	order := f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 1})

	_, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, f.admin, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusShipped, enums.OrderStatusDelivered} {
		order, err = f.svc.UpdateStatus(ctx, order.ID, next, f.admin, "moving along")
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
	}
	assert.NotNil(t, order.ShippedAt)
	assert.NotNil(t, order.DeliveredAt)
	assert.Nil(t, order.CancelledAt)
	assert.Len(t, order.History, 4)
	assert.Equal(t, int64(3), f.countEvents(t, order.ID, enums.EventOrderStatusChanged))

	last := order.History[len(order.History)-1]
	assert.Equal(t, enums.HistoryStatusChanged, last.Action)
	require.NotNil(t, last.OldValue)
	assert.Equal(t, "SHIPPED", *last.OldValue)
	assert.Equal(t, "DELIVERED", *last.NewValue)
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "10.00", 6, nil)
	buyer := f.customer(t)
	order := f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 4})
	require.Equal(t, 2, f.stock(t, product.ID))

	_, err := f.svc.Cancel(ctx, order.ID, types.CustomerActor(uuid.New()), "not mine")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	cancelled, err := f.svc.Cancel(ctx, order.ID, types.CustomerActor(buyer.ID), "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 4, cancelled.Items[0].RestockedQuantity)
	assert.Equal(t, 6, f.stock(t, product.ID))

	_, err = f.svc.Cancel(ctx, order.ID, f.admin, "again")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 6, f.stock(t, product.ID))
}

func TestShippedOrderCannotBeCancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "10.00", 3, nil)
	buyer := f.customer(t)
	order := f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 1})

	_, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed, f.admin, "")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, f.admin, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, f.admin, "too late")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, 2, f.stock(t, product.ID))
}

func TestUpdatePaymentStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "10.00", 3, nil)
	buyer := f.customer(t)
	order := f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 1})

	_, err := f.svc.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusRefunded, f.admin, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	failed, err := f.svc.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusFailed, f.admin, "card declined")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, failed.PaymentStatus)
	assert.Nil(t, failed.PaidAt)

	paid, err := f.svc.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusPaid, types.SystemActor("payments"), "")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)
	assert.NotNil(t, paid.PaidAt)

	_, err = f.svc.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusPending, f.admin, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, int64(2), f.countEvents(t, order.ID, enums.EventOrderPaymentStatusChanged))
}

func (f *fixture) paidOrder(t *testing.T, customerID, productID uuid.UUID, qty int) *models.Order {
	t.Helper()
	order := f.customerOrder(t, customerID, ItemRequest{ProductID: productID, Quantity: qty})
	paid, err := f.svc.UpdatePaymentStatus(context.Background(), order.ID, enums.PaymentStatusPaid, f.admin, "")
	require.NoError(t, err)
	return paid
}

func TestProcessRefundPartialKeepsStock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "25.00", 10, nil)
	buyer := f.customer(t)
	order := f.paidOrder(t, buyer.ID, product.ID, 2)

	refunded, err := f.svc.ProcessRefund(ctx, order.ID, dec("20"), "damaged box", f.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPartiallyRefunded, refunded.PaymentStatus)
	requireAmount(t, "20", refunded.RefundedAmount)
	assert.Equal(t, 8, f.stock(t, product.ID))
	assert.Equal(t, 1, f.gateway.Calls())
	assert.Equal(t, int64(1), f.countEvents(t, order.ID, enums.EventOrderRefunded))

	last := refunded.History[len(refunded.History)-1]
	assert.Equal(t, enums.HistoryRefundProcessed, last.Action)
	require.NotNil(t, last.Note)
	assert.Contains(t, *last.Note, "damaged box")

	_, err = f.svc.ProcessRefund(ctx, order.ID, dec("5"), "again", f.admin)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestProcessRefundFullRestoresStock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "25.00", 10, nil)
	buyer := f.customer(t)
	order := f.paidOrder(t, buyer.ID, product.ID, 2)
	require.Equal(t, 8, f.stock(t, product.ID))

	_, err := f.svc.ProcessRefund(ctx, order.ID, dec("55.01"), "too much", f.admin)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.ProcessRefund(ctx, order.ID, dec("55"), "no reason", types.CustomerActor(buyer.ID))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	refunded, err := f.svc.ProcessRefund(ctx, order.ID, dec("55"), "order lost", f.admin)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, refunded.PaymentStatus)
	requireAmount(t, "55", refunded.RefundedAmount)
	assert.Equal(t, 10, f.stock(t, product.ID))
	assert.Equal(t, 2, refunded.Items[0].RestockedQuantity)
}

func TestProcessRefundRequiresPaidOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	product := f.product(t, "25.00", 10, nil)
	buyer := f.customer(t)
	order := f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 1})

	_, err := f.svc.ProcessRefund(context.Background(), order.ID, dec("1"), "early", f.admin)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Zero(t, f.gateway.Calls())
}

func TestReturnRefundsBookOnlyReservedMoney(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "25.00", 10, nil)
	buyer := f.customer(t)
	order := f.paidOrder(t, buyer.ID, product.ID, 2)
	system := types.SystemActor("returns")

	reserve := func(amount string) decimal.Decimal {
		var reserved decimal.Decimal
		require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			reserved, err = f.svc.ReserveReturnRefund(ctx, tx, order.ID, dec(amount))
			return err
		}))
		return reserved
	}
	apply := func(amount, returnNumber string) error {
		return f.client.WithTx(ctx, func(tx *gorm.DB) error {
			return f.svc.ApplyReturnRefund(ctx, tx, order.ID, dec(amount), system, returnNumber)
		})
	}

	requireAmount(t, "30", reserve("30"))
	_, err := f.svc.ProcessRefund(ctx, order.ID, dec("30"), "goodwill", f.admin)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "reserved money is not refundable by an admin")
	assert.Zero(t, f.gateway.Calls())

	requireAmount(t, "25", reserve("40"))

	err = apply("60", "RET-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	require.NoError(t, apply("30", "RET-1"))
	partial, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPartiallyRefunded, partial.PaymentStatus)
	requireAmount(t, "30", partial.RefundedAmount)
	requireAmount(t, "25", partial.RefundReserved)

	require.NoError(t, apply("25", "RET-2"))
	full, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, full.PaymentStatus)
	requireAmount(t, "55", full.RefundedAmount)
	requireAmount(t, "0", full.RefundReserved)
	assert.Equal(t, enums.HistoryReturnRefunded, full.History[len(full.History)-1].Action)

	requireAmount(t, "0", reserve("10"))
}

func TestReserveReturnRefundRequiresCapturedPayment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "25.00", 10, nil)
	buyer := f.customer(t)
	order := f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 1})

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.ReserveReturnRefund(ctx, tx, order.ID, dec("10"))
		return err
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestAddNoteAndReassignVendor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "10.00", 5, nil)
	buyer := f.customer(t)
	order := f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 1})
	assert.Nil(t, order.VendorID)

	_, err := f.svc.AddNote(ctx, order.ID, f.admin, "   ")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	noted, err := f.svc.AddNote(ctx, order.ID, f.admin, "called the customer")
	require.NoError(t, err)
	assert.Equal(t, enums.HistoryNoteAdded, noted.History[len(noted.History)-1].Action)

	vendor := uuid.New()
	_, err = f.svc.ReassignVendor(ctx, order.ID, vendor, types.CustomerActor(buyer.ID), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	moved, err := f.svc.ReassignVendor(ctx, order.ID, vendor, f.admin, "warehouse swap")
	require.NoError(t, err)
	require.NotNil(t, moved.VendorID)
	assert.Equal(t, vendor, *moved.VendorID)
	require.NotNil(t, moved.Items[0].VendorID)
	assert.Equal(t, vendor, *moved.Items[0].VendorID)
	assert.Equal(t, enums.HistoryVendorReassigned, moved.History[len(moved.History)-1].Action)
}

func TestGetForCustomerChecksOwnership(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "10.00", 5, nil)
	buyer := f.customer(t)
	order := f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 1})

	_, err := f.svc.GetForCustomer(ctx, order.ID, buyer.ID)
	require.NoError(t, err)

	_, err = f.svc.GetForCustomer(ctx, order.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Get(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListAndStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	product := f.product(t, "25.00", 50, nil)
	buyer := f.customer(t)
	other := f.customer(t)

	paid := f.paidOrder(t, buyer.ID, product.ID, 2)
	f.customerOrder(t, buyer.ID, ItemRequest{ProductID: product.ID, Quantity: 1})
	refunded := f.paidOrder(t, other.ID, product.ID, 1)
	_, err := f.svc.ProcessRefund(ctx, refunded.ID, dec("30"), "lost", f.admin)
	require.NoError(t, err)

	first, err := f.svc.List(ctx, ListParams{CustomerID: &buyer.ID, Pagination: pagination.Params{Limit: 1}})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.List(ctx, ListParams{CustomerID: &buyer.ID, Pagination: pagination.Params{Limit: 1, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)
	assert.NotEqual(t, first.Items[0].ID, second.Items[0].ID)

	paidStatus := enums.PaymentStatusPaid
	byPayment, err := f.svc.List(ctx, ListParams{PaymentStatus: &paidStatus})
	require.NoError(t, err)
	require.Len(t, byPayment.Items, 1)
	assert.Equal(t, paid.ID, byPayment.Items[0].ID)

	search, err := f.svc.List(ctx, ListParams{Search: strings.ToLower(paid.OrderNumber[4:])})
	require.NoError(t, err)
	require.Len(t, search.Items, 1)

	for _, term := range []string{"%", "_", `\`} {
		literal, err := f.svc.List(ctx, ListParams{Search: term})
		require.NoError(t, err)
		assert.Empty(t, literal.Items, "search %q must match literally", term)
	}

	_, err = f.svc.List(ctx, ListParams{Pagination: pagination.Params{Cursor: "%%%"}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	stats, err := f.svc.Stats(ctx, StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, int64(3), stats.ByStatus[enums.OrderStatusPending])
	assert.Equal(t, int64(1), stats.ByPaymentStatus[enums.PaymentStatusRefunded])
	requireAmount(t, "85", stats.GrossRevenue)
	requireAmount(t, "30", stats.RefundedAmount)
	requireAmount(t, "42.5", stats.AverageOrderValue)
}

func TestNormalizeGuest(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		guest GuestInfo
		ok    bool
	}{
		{name: "valid", guest: GuestInfo{Email: "  Guest@Example.COM ", Name: " Sam "}, ok: true},
		{name: "empty email", guest: GuestInfo{Email: "  ", Name: "Sam"}},
		{name: "missing domain", guest: GuestInfo{Email: "guest@", Name: "Sam"}},
		{name: "display name form", guest: GuestInfo{Email: "Sam <guest@example.com>", Name: "Sam"}},
		{name: "missing name", guest: GuestInfo{Email: "guest@example.com"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeGuest(tc.guest)
			if !tc.ok {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "guest@example.com", got.Email)
			assert.Equal(t, "Sam", got.Name)
		})
	}
}
