package orders

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Create places an order for the calling customer or guest. Guests must send
// their contact details; without items the caller's cart is checked out.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login or a guest session is required"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.CreateOrderInput{
			Actor:         actor,
			Items:         toItemRequests(payload.Items),
			Addresses:     payload.toAddresses(),
			Charges:       payload.toCharges(),
			PaymentMethod: parsePaymentMethod(payload.PaymentMethod),
			Notes:         validators.OptionalString(payload.Notes, 1000),
		}
		switch actor.Kind {
		case enums.ActorCustomer:
			if payload.Guest != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "guest details are not accepted from a logged-in customer"))
				return
			}
			customerID, _ := actor.CustomerID()
			input.CustomerID = &customerID
		case enums.ActorGuest:
			if payload.Guest == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "guest details are required"))
				return
			}
			sessionID := actor.ID
			input.SessionID = &sessionID
			input.Guest = &internalorders.GuestInfo{
				Email: payload.Guest.Email,
				Name:  payload.Guest.Name,
				Phone: payload.Guest.Phone,
			}
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admins create orders through the admin endpoint"))
			return
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order, false))
	}
}

// List pages through the calling customer's orders.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := middleware.CustomerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer login required"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list := internalorders.ListParams{CustomerID: &customerID, Pagination: params}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := parseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			list.Status = &status
		}

		page, err := svc.List(r.Context(), list)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderPage(page, false))
	}
}

// Detail returns one of the calling customer's orders.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := middleware.CustomerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer login required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForCustomer(r.Context(), orderID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order, false))
	}
}

// Cancel lets a customer cancel their own PENDING or CONFIRMED order. The
// admin route reuses it; the service applies ownership only to customers.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		order, err := svc.Cancel(r.Context(), orderID, actor, validators.SanitizeString(payload.Reason, 1000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order, actor.IsAdmin()))
	}
}
