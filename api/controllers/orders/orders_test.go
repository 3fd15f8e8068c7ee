package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubOrderService struct {
	internalorders.Service

	created    *internalorders.CreateOrderInput
	listParams *internalorders.ListParams
	target     enums.OrderStatus
	refund     decimal.Decimal
	cancelBy   types.Actor
	err        error
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20261019-000001",
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		FinalAmount:   decimal.RequireFromString("42.50"),
		Items: []models.OrderItem{{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			Price:     decimal.RequireFromString("21.25"),
			Quantity:  2,
		}},
		History: []models.OrderHistory{{Action: enums.HistoryOrderCreated, ActorKind: enums.ActorSystem, ActorID: "test"}},
	}
}

func (s *stubOrderService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	s.created = &input
	if s.err != nil {
		return nil, s.err
	}
	return sampleOrder(), nil
}

func (s *stubOrderService) List(ctx context.Context, params internalorders.ListParams) (*pagination.Page[models.Order], error) {
	s.listParams = &params
	return &pagination.Page[models.Order]{Items: []models.Order{*sampleOrder()}, NextCursor: "next"}, nil
}

func (s *stubOrderService) GetForCustomer(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return sampleOrder(), nil
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID uuid.UUID, actor types.Actor, reason string) (*models.Order, error) {
	s.cancelBy = actor
	if s.err != nil {
		return nil, s.err
	}
	order := sampleOrder()
	order.Status = enums.OrderStatusCancelled
	return order, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor types.Actor, note string) (*models.Order, error) {
	s.target = target
	if s.err != nil {
		return nil, s.err
	}
	order := sampleOrder()
	order.Status = target
	return order, nil
}

func (s *stubOrderService) ProcessRefund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string, actor types.Actor) (*models.Order, error) {
	s.refund = amount
	return sampleOrder(), s.err
}

func withOrderID(req *http.Request, orderID uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func asActor(req *http.Request, actor types.Actor) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func TestCreateForCustomer(t *testing.T) {
	svc := &stubOrderService{}
	customerID := uuid.New()
	productID := uuid.New()
	body := `{"items":[{"productId":"` + productID.String() + `","quantity":2}],"shippingAddress":{"fullName":"Ada","addressLine":"1 Main","city":"Lagos"},"shipping":"5.00"}`

	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), types.CustomerActor(customerID))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	in := svc.created
	if in.CustomerID == nil || *in.CustomerID != customerID || in.Guest != nil {
		t.Fatalf("expected customer checkout, got %+v", in)
	}
	if len(in.Items) != 1 || in.Items[0].ProductID != productID || in.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", in.Items)
	}
	if !in.Charges.Shipping.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected shipping %s", in.Charges.Shipping)
	}
	if in.Addresses.ShippingAddress == nil || in.Addresses.ShippingAddress.City != "Lagos" {
		t.Fatalf("expected inline shipping address, got %+v", in.Addresses)
	}
	data := decodeData(t, resp)
	if data["orderNumber"] != "ORD-20261019-000001" || data["finalAmount"] != "42.5" {
		t.Fatalf("unexpected body %v", data)
	}
	if _, ok := data["history"]; ok {
		t.Fatalf("customers should not see history")
	}
}

func TestCreateForGuestUsesSessionCart(t *testing.T) {
	svc := &stubOrderService{}
	body := `{"guest":{"email":"guest@example.com","name":"Guest"},"shippingAddress":{"fullName":"G","addressLine":"2 Side","city":"Abuja"}}`

	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), types.GuestActor("sess-1"))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	in := svc.created
	if in.Guest == nil || in.Guest.Email != "guest@example.com" || in.SessionID == nil || *in.SessionID != "sess-1" || len(in.Items) != 0 {
		t.Fatalf("expected guest cart checkout, got %+v", in)
	}
}

func TestCreateRejections(t *testing.T) {
	cases := []struct {
		name   string
		actor  types.Actor
		body   string
		status int
	}{
		{name: "guest without details", actor: types.GuestActor("s"), body: `{}`, status: http.StatusBadRequest},
		{name: "guest bad email", actor: types.GuestActor("s"), body: `{"guest":{"email":"nope","name":"x"}}`, status: http.StatusBadRequest},
		{name: "customer with guest details", actor: types.CustomerActor(uuid.New()), body: `{"guest":{"email":"a@b.co","name":"x"}}`, status: http.StatusBadRequest},
		{name: "admin", actor: types.AdminActor(uuid.New()), body: `{}`, status: http.StatusForbidden},
		{name: "zero quantity", actor: types.CustomerActor(uuid.New()), body: `{"items":[{"productId":"` + uuid.NewString() + `","quantity":0}]}`, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		svc := &stubOrderService{}
		req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(tc.body)), tc.actor)
		resp := httptest.NewRecorder()
		Create(svc, nil).ServeHTTP(resp, req)
		if resp.Code != tc.status {
			t.Fatalf("%s: expected %d got %d: %s", tc.name, tc.status, resp.Code, resp.Body.String())
		}
		if svc.created != nil {
			t.Fatalf("%s: service should not be called", tc.name)
		}
	}
}

func TestCreateSurfacesServiceErrors(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not active")}
	body := `{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}]}`
	req := asActor(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), types.CustomerActor(uuid.New()))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestListScopesToCustomer(t *testing.T) {
	svc := &stubOrderService{}
	customerID := uuid.New()
	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=shipped&limit=5", nil), types.CustomerActor(customerID))
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	p := svc.listParams
	if p.CustomerID == nil || *p.CustomerID != customerID || p.Status == nil || *p.Status != enums.OrderStatusShipped || p.Pagination.Limit != 5 {
		t.Fatalf("unexpected params %+v", p)
	}
	if decodeData(t, resp)["nextCursor"] != "next" {
		t.Fatalf("expected next cursor")
	}
}

func TestListRequiresCustomer(t *testing.T) {
	req := asActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), types.GuestActor("s"))
	resp := httptest.NewRecorder()
	List(&stubOrderService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestDetailOwnership(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.Ownership("order", "x")}
	req := withOrderID(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New())
	req = asActor(req, types.CustomerActor(uuid.New()))
	resp := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCancelPassesActor(t *testing.T) {
	svc := &stubOrderService{}
	customer := types.CustomerActor(uuid.New())
	req := withOrderID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"changed my mind"}`)), uuid.New())
	resp := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(resp, asActor(req, customer))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.cancelBy != customer {
		t.Fatalf("expected cancel by customer, got %v", svc.cancelBy)
	}
	if decodeData(t, resp)["status"] != string(enums.OrderStatusCancelled) {
		t.Fatalf("expected cancelled order")
	}
}

func TestAdminUpdateStatus(t *testing.T) {
	svc := &stubOrderService{}
	req := withOrderID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"confirmed"}`)), uuid.New())
	resp := httptest.NewRecorder()
	AdminUpdateStatus(svc, nil).ServeHTTP(resp, asActor(req, types.AdminActor(uuid.New())))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.target != enums.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", svc.target)
	}
	if _, ok := decodeData(t, resp)["history"]; !ok {
		t.Fatalf("admins should see history")
	}
}

func TestAdminUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrderService{}
	req := withOrderID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"teleported"}`)), uuid.New())
	resp := httptest.NewRecorder()
	AdminUpdateStatus(svc, nil).ServeHTTP(resp, asActor(req, types.AdminActor(uuid.New())))
	if resp.Code != http.StatusBadRequest || svc.target != "" {
		t.Fatalf("expected 400 without service call, got %d", resp.Code)
	}
}

func TestAdminUpdateStatusConflict(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.InvalidTransition("order", "ORD-1", "DELIVERED", "PENDING")}
	req := withOrderID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"PENDING"}`)), uuid.New())
	resp := httptest.NewRecorder()
	AdminUpdateStatus(svc, nil).ServeHTTP(resp, asActor(req, types.AdminActor(uuid.New())))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	req := withOrderID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"CONFIRMED"}`)), uuid.New())
	resp := httptest.NewRecorder()
	AdminUpdateStatus(&stubOrderService{}, nil).ServeHTTP(resp, asActor(req, types.CustomerActor(uuid.New())))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestAdminRefundValidatesAmount(t *testing.T) {
	admin := types.AdminActor(uuid.New())
	svc := &stubOrderService{}

	req := withOrderID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"0","reason":"x"}`)), uuid.New())
	resp := httptest.NewRecorder()
	AdminRefund(svc, nil).ServeHTTP(resp, asActor(req, admin))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = withOrderID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"12.34","reason":"damaged"}`)), uuid.New())
	resp = httptest.NewRecorder()
	AdminRefund(svc, nil).ServeHTTP(resp, asActor(req, admin))
	if resp.Code != http.StatusOK || !svc.refund.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("expected refund of 12.34, got %d %s", resp.Code, svc.refund)
	}
}

func TestAdminListParsesFilters(t *testing.T) {
	svc := &stubOrderService{}
	vendorID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?vendorId="+vendorID.String()+"&paymentStatus=paid&q=%20ada%20&from=2026-01-01&to=2026-02-01", nil)
	resp := httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(resp, asActor(req, types.AdminActor(uuid.New())))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	p := svc.listParams
	if p.VendorID == nil || *p.VendorID != vendorID || p.PaymentStatus == nil || *p.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("unexpected params %+v", p)
	}
	if p.Search != "ada" || p.CreatedFrom == nil || p.CreatedTo == nil {
		t.Fatalf("unexpected search/window %+v", p)
	}
}
