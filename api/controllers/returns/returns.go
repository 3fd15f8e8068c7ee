package returns

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	returnsvc "github.com/angelmondragon/storefront-backend/internal/returns"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var errCustomerRequired = pkgerrors.New(pkgerrors.CodeForbidden, "customer login required")

// Create opens a return on one of the calling customer's orders.
func Create(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := middleware.CustomerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, errCustomerRequired)
			return
		}
		var payload createReturnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReturnResponse(request, false))
	}
}

// List pages through the customer's returns, or lists every return on one
// order when orderId is given.
func List(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := middleware.CustomerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, errCustomerRequired)
			return
		}
		orderID, err := validators.ParseQueryUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if orderID != nil {
			requests, err := svc.ListForOrder(r.Context(), *orderID, &customerID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			out := make([]returnResponse, 0, len(requests))
			for i := range requests {
				out = append(out, newReturnResponse(&requests[i], false))
			}
			responses.WriteSuccess(w, map[string]any{"items": out})
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForCustomer(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnPage(page, false))
	}
}

func Detail(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := middleware.CustomerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, errCustomerRequired)
			return
		}
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.GetForCustomer(r.Context(), returnID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(request, false))
	}
}

// Cancel withdraws a REQUESTED or APPROVED return.
func Cancel(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := middleware.CustomerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, errCustomerRequired)
			return
		}
		returnID, err := validators.ParseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Cancel(r.Context(), returnID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(request, false))
	}
}

// Eligibility answers whether the customer's order can still be returned.
func Eligibility(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := middleware.CustomerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, errCustomerRequired)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.EligibleForReturn(r.Context(), orderID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eligibilityResponse{
			OrderID:          result.OrderID,
			Eligible:         result.Eligible,
			Reason:           result.Reason,
			Deadline:         result.Deadline,
			ReturnWindowDays: result.Policy.ReturnWindowDays,
		})
	}
}
