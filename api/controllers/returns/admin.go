package returns

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	returnsvc "github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func AdminList(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params returnsvc.ListParams
		var err error
		if params.Pagination, err = validators.ParsePagination(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.CustomerID, err = validators.ParseQueryUUID(r, "customerId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.OrderID, err = validators.ParseQueryUUID(r, "orderId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseReturnStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown return status"))
				return
			}
			params.Status = &status
		}
		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnPage(page, true))
	}
}

func AdminDetail(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Get(r.Context(), returnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(request, true))
	}
}

// AdminApprove approves a REQUESTED return and issues its label.
func AdminApprove(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := adminActor(w, r, logg)
		if !ok {
			return
		}
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload approveRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		request, err := svc.Approve(r.Context(), returnID, actor, strings.TrimSpace(payload.Notes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(request, true))
	}
}

func AdminReject(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := adminActor(w, r, logg)
		if !ok {
			return
		}
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload rejectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Reject(r.Context(), returnID, actor, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(request, true))
	}
}

// AdminRefund pays out an approved return. A provider failure still answers
// 200 with lastRefundError set; the call can be retried.
func AdminRefund(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := adminActor(w, r, logg)
		if !ok {
			return
		}
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.ProcessRefund(r.Context(), returnID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(request, true))
	}
}

func adminActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (types.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok || !actor.IsAdmin() {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
		return types.Actor{}, false
	}
	return actor, true
}
