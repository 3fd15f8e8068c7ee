package returns

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	returnsvc "github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func AdminCreatePolicy(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := adminActor(w, r, logg); !ok {
			return
		}
		var payload createPolicyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		policy, err := svc.CreatePolicy(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPolicyResponse(policy))
	}
}

func AdminSetDefaultPolicy(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := adminActor(w, r, logg); !ok {
			return
		}
		policyID, err := validators.ParseUUIDParam(r, "policyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		policy, err := svc.SetDefault(r.Context(), policyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPolicyResponse(policy))
	}
}

// AdminDefaultPolicy shows the stored default, or the configured fallback
// when none is stored.
func AdminDefaultPolicy(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		policy, err := svc.ApplicablePolicy(r.Context(), nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPolicyResponse(policy))
	}
}
