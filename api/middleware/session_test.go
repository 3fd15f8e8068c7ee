package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func TestGuestSessionBecomesGuestActor(t *testing.T) {
	var actor types.Actor
	var session string
	handler := GuestSession(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ = ActorFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Session-Id", " sess-42 ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if actor.Kind != enums.ActorGuest || actor.ID != "sess-42" {
		t.Fatalf("unexpected actor %v", actor)
	}
	if session != "sess-42" {
		t.Fatalf("unexpected session %q", session)
	}
}

func TestGuestSessionKeepsAuthenticatedActor(t *testing.T) {
	customer := types.CustomerActor(uuid.New())
	var actor types.Actor
	var session string
	handler := GuestSession(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ = ActorFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
	req.Header.Set("X-Session-Id", "sess-7")
	req = req.WithContext(WithActor(req.Context(), customer))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if actor != customer {
		t.Fatalf("expected customer actor, got %v", actor)
	}
	if session != "sess-7" {
		t.Fatalf("expected session to be kept for merge, got %q", session)
	}
}

func TestGuestSessionRejectsOversizedID(t *testing.T) {
	called := false
	handler := GuestSession(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-Id", strings.Repeat("a", maxSessionIDLength+1))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 without calling next, got %d called=%v", resp.Code, called)
	}
}
