package cart

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := NewService(
		NewRepository(conn),
		client,
		catalog.NewRepository(conn),
		inventory.NewGuard(nil, nil),
		logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard}),
	)
	require.NoError(t, err)
	return svc, conn
}

func seedProduct(t *testing.T, conn *gorm.DB, name string, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Name:          name,
		SKU:           "SKU-" + uuid.NewString()[:8],
		Price:         decimal.RequireFromString(price),
		Images:        []string{"https://cdn.example.com/" + name + ".jpg"},
		Stock:         stock,
		TrackQuantity: true,
		IsActive:      true,
		IsPublished:   true,
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewService(nil, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestOwnerMustBeExactlyOne(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	session := "sess-1"
	assert.Error(t, Owner{}.validate())
	assert.Error(t, Owner{CustomerID: &id, SessionID: &session}.validate())
	assert.NoError(t, CustomerOwner(id).validate())
	assert.NoError(t, GuestOwner(session).validate())
	assert.Error(t, GuestOwner("  ").validate())
}

func TestGetOrCreateIsLazyAndStable(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := CustomerOwner(uuid.New())

	first, err := svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	second, err := svc.GetOrCreate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, enums.CartTypeCustomer, first.Type)
}

func TestAddItemSumsQuantityAndChecksSummedStock(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, "widget", "10.00", 5)
	owner := CustomerOwner(uuid.New())

	view, err := svc.AddItem(ctx, owner, product.ID, 3)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)

	_, err = svc.AddItem(ctx, owner, product.ID, 3)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(pkgerrors.StockDetails)
	require.True(t, ok)
	assert.Equal(t, 6, details.Requested)
	assert.Equal(t, 5, details.Available)

	view, err = svc.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)

	view, err = svc.AddItem(ctx, owner, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("50.00")), "total %s", view.Total)
}

// racingRepository misses the existing line on the first locked lookup, as
// when another request inserts it between lookup and insert.
type racingRepository struct {
	CartRepository
	missed *atomic.Bool
}

func (r racingRepository) WithTx(tx *gorm.DB) CartRepository {
	return racingRepository{CartRepository: r.CartRepository.WithTx(tx), missed: r.missed}
}

func (r racingRepository) FindItemForUpdate(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	if r.missed.CompareAndSwap(false, true) {
		return nil, gorm.ErrRecordNotFound
	}
	return r.CartRepository.FindItemForUpdate(ctx, cartID, productID)
}

func TestAddItemSumsIntoLineCreatedConcurrently(t *testing.T) {
	t.Parallel()
	client, conn := dbtest.Client(t)
	ctx := context.Background()
	product := seedProduct(t, conn, "kettle", "12.00", 10)
	owner := CustomerOwner(uuid.New())
	logg := logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard})

	plain, err := NewService(NewRepository(conn), client, catalog.NewRepository(conn), inventory.NewGuard(nil, nil), logg)
	require.NoError(t, err)
	_, err = plain.AddItem(ctx, owner, product.ID, 2)
	require.NoError(t, err)

	racing, err := NewService(racingRepository{CartRepository: NewRepository(conn), missed: &atomic.Bool{}},
		client, catalog.NewRepository(conn), inventory.NewGuard(nil, nil), logg)
	require.NoError(t, err)
	view, err := racing.AddItem(ctx, owner, product.ID, 3)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
}

func TestAddItemRejectsUnavailableProduct(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	product := seedProduct(t, conn, "hidden", "5.00", 10)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_published", false).Error)

	_, err := svc.AddItem(context.Background(), GuestOwner("sess"), product.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductUnavailable), "got %v", err)
}

func TestAddItemKeepsSnapshotPrice(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, "lamp", "20.00", 10)
	owner := GuestOwner("sess-price")

	_, err := svc.AddItem(ctx, owner, product.ID, 1)
	require.NoError(t, err)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("price", decimal.RequireFromString("25.00")).Error)

	view, err := svc.UpdateItemQuantity(ctx, owner, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].Price.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, view.Items[0].Subtotal.Equal(decimal.RequireFromString("40.00")))
	assert.Equal(t, "lamp", view.Items[0].Name)
}

func TestUpdateItemQuantityZeroRemoves(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, "mug", "4.00", 10)
	owner := GuestOwner("sess-zero")

	_, err := svc.AddItem(ctx, owner, product.ID, 2)
	require.NoError(t, err)

	view, err := svc.UpdateItemQuantity(ctx, owner, product.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = svc.RemoveItem(ctx, owner, product.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestUpdateItemQuantityChecksNewQuantity(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, "pen", "1.00", 3)
	owner := GuestOwner("sess-update")

	_, err := svc.AddItem(ctx, owner, product.ID, 1)
	require.NoError(t, err)
	_, err = svc.UpdateItemQuantity(ctx, owner, product.ID, 4)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
}

func TestClearKeepsCart(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, "cup", "3.00", 10)
	owner := GuestOwner("sess-clear")

	before, err := svc.AddItem(ctx, owner, product.ID, 1)
	require.NoError(t, err)
	after, err := svc.Clear(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Empty(t, after.Items)
	assert.True(t, after.Total.IsZero())
}

func TestMergeGuestIntoCustomer(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	shared := seedProduct(t, conn, "shared", "10.00", 10)
	guestOnly := seedProduct(t, conn, "guest-only", "2.50", 10)
	customerID := uuid.New()
	session := "sess-merge"

	_, err := svc.AddItem(ctx, GuestOwner(session), shared.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, GuestOwner(session), guestOnly.ID, 4)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, CustomerOwner(customerID), shared.ID, 1)
	require.NoError(t, err)

	view, err := svc.MergeGuestIntoCustomer(ctx, customerID, session)
	require.NoError(t, err)

	quantities := map[uuid.UUID]int{}
	for _, item := range view.Items {
		quantities[item.ProductID] = item.Quantity
	}
	assert.Equal(t, map[uuid.UUID]int{shared.ID: 3, guestOnly.ID: 4}, quantities)

	var guestCarts int64
	require.NoError(t, conn.Model(&models.Cart{}).Where("session_id = ?", session).Count(&guestCarts).Error)
	assert.Zero(t, guestCarts)

	var items int64
	require.NoError(t, conn.Model(&models.CartItem{}).Count(&items).Error)
	assert.Equal(t, int64(2), items, "guest items must be re-homed, not duplicated")
}

func TestMergeWithoutGuestCartIsNoop(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, "solo", "1.00", 10)
	customerID := uuid.New()

	_, err := svc.AddItem(ctx, CustomerOwner(customerID), product.ID, 1)
	require.NoError(t, err)

	view, err := svc.MergeGuestIntoCustomer(ctx, customerID, "missing-session")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestValidateFlagsStaleLines(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	scarce := seedProduct(t, conn, "scarce", "1.00", 5)
	retired := seedProduct(t, conn, "retired", "1.00", 5)
	owner := GuestOwner("sess-validate")

	_, err := svc.AddItem(ctx, owner, scarce.ID, 4)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, owner, retired.ID, 1)
	require.NoError(t, err)

	result, err := svc.Validate(ctx, owner)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", scarce.ID).Update("stock", 2).Error)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", retired.ID).Update("is_active", false).Error)

	result, err = svc.Validate(ctx, owner)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	reasons := map[uuid.UUID]Issue{}
	for _, issue := range result.Issues {
		reasons[issue.ProductID] = issue
	}
	assert.Equal(t, enums.CartIssueInsufficientStock, reasons[scarce.ID].Reason)
	assert.Equal(t, 2, reasons[scarce.ID].Available)
	assert.Equal(t, enums.CartIssueProductUnavailable, reasons[retired.ID].Reason)
}

func TestDeleteStaleGuestCarts(t *testing.T) {
	t.Parallel()
	svc, conn := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, conn, "stale", "1.00", 10)

	_, err := svc.AddItem(ctx, GuestOwner("old"), product.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, CustomerOwner(uuid.New()), product.ID, 1)
	require.NoError(t, err)

	deleted, err := NewRepository(conn).DeleteStaleGuestCarts(ctx, time.Now().UTC().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var carts int64
	require.NoError(t, conn.Model(&models.Cart{}).Count(&carts).Error)
	assert.Equal(t, int64(1), carts)
}
