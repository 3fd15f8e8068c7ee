package cart

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
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubCartService struct {
	cartsvc.Service
	owner     cartsvc.Owner
	productID uuid.UUID
	qty       int
	merged    string
	err       error
}

func (s *stubCartService) Get(ctx context.Context, owner cartsvc.Owner) (*cartsvc.View, error) {
	s.owner = owner
	return &cartsvc.View{ID: uuid.New(), Type: enums.CartTypeGuest, Total: decimal.Zero}, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, owner cartsvc.Owner, productID uuid.UUID, qty int) (*cartsvc.View, error) {
	s.owner, s.productID, s.qty = owner, productID, qty
	if s.err != nil {
		return nil, s.err
	}
	return &cartsvc.View{ItemCount: qty}, nil
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, owner cartsvc.Owner, productID uuid.UUID, qty int) (*cartsvc.View, error) {
	s.owner, s.productID, s.qty = owner, productID, qty
	return &cartsvc.View{ItemCount: qty}, s.err
}

func (s *stubCartService) MergeGuestIntoCustomer(ctx context.Context, customerID uuid.UUID, sessionID string) (*cartsvc.View, error) {
	s.owner = cartsvc.CustomerOwner(customerID)
	s.merged = sessionID
	return &cartsvc.View{Type: enums.CartTypeCustomer}, s.err
}

func serve(t *testing.T, handler http.Handler, req *http.Request, actor *types.Actor) *httptest.ResponseRecorder {
	t.Helper()
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestCartFetchUsesGuestSession(t *testing.T) {
	svc := &stubCartService{}
	guest := types.GuestActor("sess-1")
	resp := serve(t, CartFetch(svc, nil), httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), &guest)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.owner.SessionID == nil || *svc.owner.SessionID != "sess-1" || svc.owner.CustomerID != nil {
		t.Fatalf("expected guest owner, got %s", svc.owner)
	}
}

func TestCartFetchRequiresActor(t *testing.T) {
	resp := serve(t, CartFetch(&stubCartService{}, nil), httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItem(t *testing.T) {
	svc := &stubCartService{}
	customerID := uuid.New()
	customer := types.CustomerActor(customerID)
	productID := uuid.New()

	body := `{"productId":"` + productID.String() + `","quantity":3}`
	resp := serve(t, CartAddItem(svc, nil), httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), &customer)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.owner.CustomerID == nil || *svc.owner.CustomerID != customerID || svc.productID != productID || svc.qty != 3 {
		t.Fatalf("unexpected call owner=%s product=%s qty=%d", svc.owner, svc.productID, svc.qty)
	}
}

func TestCartAddItemRejectsBadPayload(t *testing.T) {
	guest := types.GuestActor("sess-1")
	for _, body := range []string{`{"quantity":1}`, `{"productId":"` + uuid.NewString() + `","quantity":0}`, `{"unknown":true}`} {
		resp := serve(t, CartAddItem(&stubCartService{}, nil), httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), &guest)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", body, resp.Code)
		}
	}
}

func TestCartAddItemSurfacesStockErrors(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.InsufficientStock("p", 5, 2)}
	guest := types.GuestActor("sess-1")
	body := `{"productId":"` + uuid.NewString() + `","quantity":5}`
	resp := serve(t, CartAddItem(svc, nil), httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), &guest)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}

func TestCartUpdateItemAllowsZero(t *testing.T) {
	svc := &stubCartService{qty: -1}
	guest := types.GuestActor("sess-1")
	productID := uuid.New()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("productId", productID.String())
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+productID.String(), strings.NewReader(`{"quantity":0}`))
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := serve(t, CartUpdateItem(svc, nil), req, &guest)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.qty != 0 || svc.productID != productID {
		t.Fatalf("unexpected call qty=%d product=%s", svc.qty, svc.productID)
	}
}

func TestCartMerge(t *testing.T) {
	customerID := uuid.New()
	customer := types.CustomerActor(customerID)

	t.Run("session header", func(t *testing.T) {
		svc := &stubCartService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
		req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-9"))
		resp := serve(t, CartMerge(svc, nil), req, &customer)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
		}
		if svc.merged != "sess-9" {
			t.Fatalf("expected merge of sess-9, got %q", svc.merged)
		}
	})

	t.Run("session in body", func(t *testing.T) {
		svc := &stubCartService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(`{"sessionId":"sess-body"}`))
		resp := serve(t, CartMerge(svc, nil), req, &customer)
		if resp.Code != http.StatusOK || svc.merged != "sess-body" {
			t.Fatalf("expected merge of sess-body, got %d %q", resp.Code, svc.merged)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		resp := serve(t, CartMerge(&stubCartService{}, nil), httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil), &customer)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", resp.Code)
		}
	})

	t.Run("guest cannot merge", func(t *testing.T) {
		guest := types.GuestActor("sess-9")
		resp := serve(t, CartMerge(&stubCartService{}, nil), httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil), &guest)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("expected 403 got %d", resp.Code)
		}
	})
}
