package orders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// AdminCreate places a manual order for an existing customer.
func AdminCreate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := adminActor(w, r, logg)
		if !ok {
			return
		}
		var payload manualOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalorders.ManualOrderInput{
			Actor:         actor,
			CustomerID:    payload.CustomerID,
			Items:         toItemRequests(payload.Items),
			Addresses:     payload.toAddresses(),
			Charges:       payload.toCharges(),
			PaymentMethod: parsePaymentMethod(payload.PaymentMethod),
			Notes:         validators.OptionalString(payload.Notes, 1000),
		}
		if payload.Status != nil {
			status, err := parseOrderStatus(*payload.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Status = &status
		}
		if payload.PaymentStatus != nil {
			status, err := parsePaymentStatus(*payload.PaymentStatus)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.PaymentStatus = &status
		}

		order, err := svc.CreateManual(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order, true))
	}
}

// AdminList filters orders by customer, vendor, status, payment status, text
// search and creation window.
func AdminList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := adminListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderPage(page, false))
	}
}

func adminListParams(r *http.Request) (internalorders.ListParams, error) {
	var params internalorders.ListParams
	var err error
	if params.Pagination, err = validators.ParsePagination(r); err != nil {
		return params, err
	}
	if params.CustomerID, err = validators.ParseQueryUUID(r, "customerId"); err != nil {
		return params, err
	}
	if params.VendorID, err = validators.ParseQueryUUID(r, "vendorId"); err != nil {
		return params, err
	}
	if params.CreatedFrom, err = validators.ParseQueryTime(r, "from"); err != nil {
		return params, err
	}
	if params.CreatedTo, err = validators.ParseQueryTime(r, "to"); err != nil {
		return params, err
	}
	query := r.URL.Query()
	if raw := query.Get("status"); raw != "" {
		status, err := parseOrderStatus(raw)
		if err != nil {
			return params, err
		}
		params.Status = &status
	}
	if raw := query.Get("paymentStatus"); raw != "" {
		status, err := parsePaymentStatus(raw)
		if err != nil {
			return params, err
		}
		params.PaymentStatus = &status
	}
	params.Search = validators.SanitizeString(query.Get("q"), 100)
	return params, nil
}

func AdminStats(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter internalorders.StatsFilter
		var err error
		if filter.CreatedFrom, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.CreatedTo, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.VendorID, err = validators.ParseQueryUUID(r, "vendorId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.Stats(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// AdminDetail includes the audit history.
func AdminDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order, true))
	}
}

func AdminUpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminMutation(logg, func(r *http.Request, actor types.Actor) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		status, err := parseOrderStatus(payload.Status)
		if err != nil {
			return nil, err
		}
		return svc.UpdateStatus(r.Context(), orderID, status, actor, strings.TrimSpace(payload.Note))
	})
}

func AdminUpdatePaymentStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminMutation(logg, func(r *http.Request, actor types.Actor) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		var payload paymentStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		status, err := parsePaymentStatus(payload.PaymentStatus)
		if err != nil {
			return nil, err
		}
		return svc.UpdatePaymentStatus(r.Context(), orderID, status, actor, strings.TrimSpace(payload.Note))
	})
}

func AdminAddNote(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminMutation(logg, func(r *http.Request, actor types.Actor) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		var payload noteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddNote(r.Context(), orderID, actor, strings.TrimSpace(payload.Note))
	})
}

func AdminReassignVendor(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminMutation(logg, func(r *http.Request, actor types.Actor) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		var payload vendorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.ReassignVendor(r.Context(), orderID, payload.VendorID, actor, strings.TrimSpace(payload.Note))
	})
}

// AdminRefund issues a manual refund against the order's captured payment.
func AdminRefund(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return adminMutation(logg, func(r *http.Request, actor types.Actor) (*models.Order, error) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			return nil, err
		}
		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.ProcessRefund(r.Context(), orderID, payload.Amount, strings.TrimSpace(payload.Reason), actor)
	})
}

// adminMutation runs fn for an admin actor and renders the resulting order.
func adminMutation(logg *logger.Logger, fn func(r *http.Request, actor types.Actor) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := adminActor(w, r, logg)
		if !ok {
			return
		}
		order, err := fn(r, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order, true))
	}
}

func adminActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (types.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok || actor.Kind != enums.ActorAdmin {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
		return types.Actor{}, false
	}
	return actor, true
}
