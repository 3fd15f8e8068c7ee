package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	sessionHeader      = "X-Session-Id"
	maxSessionIDLength = 128
)

// GuestSession records the X-Session-Id header. When Auth found no token the
// session becomes a guest actor; an authenticated customer keeps the session
// id around so the guest cart can be merged.
func GuestSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(sessionID) > maxSessionIDLength {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id too long"))
				return
			}

			ctx := WithSessionID(r.Context(), sessionID)
			if _, ok := ActorFromContext(ctx); !ok {
				guest := types.GuestActor(sessionID)
				ctx = WithActor(ctx, guest)
				if logg != nil {
					ctx = logg.WithActor(ctx, string(guest.Kind), guest.ID)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
