// Package returns runs the return-request lifecycle: eligibility, policy fees,
// approval with a shipping label, and the claim-then-pay refund.
package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/numbering"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Service exposes return policy and return request operations.
type Service interface {
	CreatePolicy(ctx context.Context, input CreatePolicyInput) (*models.ReturnPolicy, error)
	SetDefault(ctx context.Context, policyID uuid.UUID) (*models.ReturnPolicy, error)
	DefaultPolicy(ctx context.Context) (*models.ReturnPolicy, error)
	ApplicablePolicy(ctx context.Context, order *models.Order) (*models.ReturnPolicy, error)
	EligibleForReturn(ctx context.Context, orderID, customerID uuid.UUID) (*Eligibility, error)
	Create(ctx context.Context, input CreateReturnInput) (*models.ReturnRequest, error)
	Approve(ctx context.Context, returnID uuid.UUID, actor types.Actor, notes string) (*models.ReturnRequest, error)
	Reject(ctx context.Context, returnID uuid.UUID, actor types.Actor, reason string) (*models.ReturnRequest, error)
	Cancel(ctx context.Context, returnID, customerID uuid.UUID) (*models.ReturnRequest, error)
	ProcessRefund(ctx context.Context, returnID uuid.UUID, actor types.Actor) (*models.ReturnRequest, error)
	Get(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error)
	GetForCustomer(ctx context.Context, returnID, customerID uuid.UUID) (*models.ReturnRequest, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) (*pagination.Page[models.ReturnRequest], error)
	ListForOrder(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) ([]models.ReturnRequest, error)
	List(ctx context.Context, params ListParams) (*pagination.Page[models.ReturnRequest], error)
}

// ServiceParams bundles the dependencies required to build the return service.
type ServiceParams struct {
	Repo     ReturnRepository
	Tx       txRunner
	Outbox   outboxPublisher
	Orders   orderBooker
	Stock    stockRestorer
	Numbers  numbering.Generator
	Refunder payments.Refunder
	Labels   shipping.LabelGenerator
	Config   config.ReturnsConfig
	Metrics  *metrics.EngineMetrics
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     ReturnRepository
	tx       txRunner
	outbox   outboxPublisher
	orders   orderBooker
	stock    stockRestorer
	numbers  numbering.Generator
	refunder payments.Refunder
	labels   shipping.LabelGenerator
	fallback models.ReturnPolicy
	lease    time.Duration
	metrics  *metrics.EngineMetrics
	logg     *logger.Logger
	now      func() time.Time
}

const defaultClaimLease = 2 * time.Minute

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("returns repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order booker required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock restorer required")
	case params.Numbers == nil:
		return nil, fmt.Errorf("number generator required")
	case params.Refunder == nil:
		return nil, fmt.Errorf("refunder required")
	case params.Labels == nil:
		return nil, fmt.Errorf("label generator required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	fallback, err := FallbackPolicy(params.Config)
	if err != nil {
		return nil, fmt.Errorf("fallback return policy: %w", err)
	}
	lease := params.Config.RefundClaimLease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		orders:   params.Orders,
		stock:    params.Stock,
		numbers:  params.Numbers,
		refunder: params.Refunder,
		labels:   params.Labels,
		fallback: fallback,
		lease:    lease,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      clock,
	}, nil
}

// Create opens a return request against a shipped or delivered order.
func (s *service) Create(ctx context.Context, input CreateReturnInput) (*models.ReturnRequest, error) {
	if input.CustomerID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and order id are required")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown return reason")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return must contain at least one item")
	}

	// Policy and number are resolved before the transaction so nothing inside
	// it reads outside tx.
	policy, err := s.ApplicablePolicy(ctx, nil)
	if err != nil {
		return nil, err
	}
	if policy.RequiresOriginalPackaging && !input.OriginalPackaging {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items must be returned in their original packaging")
	}
	number, err := s.numbers.Next(ctx, numbering.KindReturn)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate return number")
	}

	customerID := input.CustomerID
	request := &models.ReturnRequest{
		ID:                uuid.New(),
		ReturnNumber:      number,
		OrderID:           input.OrderID,
		CustomerID:        &customerID,
		Reason:            input.Reason,
		ReasonDetails:     strings.TrimSpace(input.ReasonDetails),
		Status:            enums.ReturnStatusRequested,
		OriginalPackaging: input.OriginalPackaging,
	}
	if policy.ID != uuid.Nil {
		policyID := policy.ID
		request.PolicyID = &policyID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err, "order", input.OrderID.String())
		}
		if order.CustomerID == nil || *order.CustomerID != input.CustomerID {
			return pkgerrors.Ownership("order", order.ID.String())
		}
		if err := IsOrderEligibleForReturn(*order, *policy, s.now()); err != nil {
			return err
		}
		returned, err := repo.ReturnedQuantities(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load returned quantities")
		}
		items, total, err := buildItems(request.ID, order, input.Items, returned, policy.AllowPartialReturns)
		if err != nil {
			return err
		}

		fees := ComputeFees(total, order.FinalAmount, *policy)
		request.Items = items
		request.TotalAmount = fees.Total
		request.RestockingFee = fees.RestockingFee
		request.ReturnShippingCost = fees.ShippingCost
		request.RefundAmount = fees.Refund
		deadline := order.CreatedAt.AddDate(0, 0, policy.RefundWindowDays)
		request.RefundDeadline = &deadline

		if err := repo.Create(ctx, request); err != nil {
			if db.IsUniqueViolation(err, "ux_return_requests_number") {
				return pkgerrors.New(pkgerrors.CodeConflict, "return number already issued").
					WithDetails(pkgerrors.EntityDetails{Entity: "return_request", Key: number})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
		}
		return s.emit(ctx, tx, enums.EventReturnRequested, request, types.CustomerActor(input.CustomerID), "")
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithReturnID(s.logg.WithOrderID(ctx, input.OrderID.String()), request.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"return_number": request.ReturnNumber,
		"refund_amount": request.RefundAmount.StringFixed(moneyPlaces),
	})
	s.logg.Info(logCtx, "return requested")
	return s.Get(ctx, request.ID)
}

// buildItems validates the requested lines against the order and what is
// already out on live requests, returning the items and their gross value.
func buildItems(returnID uuid.UUID, order *models.Order, inputs []ItemInput, returned map[uuid.UUID]int, allowPartial bool) ([]models.ReturnItem, decimal.Decimal, error) {
	byID := make(map[uuid.UUID]models.OrderItem, len(order.Items))
	for _, item := range order.Items {
		byID[item.ID] = item
	}

	seen := make(map[uuid.UUID]bool, len(inputs))
	items := make([]models.ReturnItem, 0, len(inputs))
	total := decimal.Zero
	for _, in := range inputs {
		if seen[in.OrderItemID] {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order item listed twice")
		}
		seen[in.OrderItemID] = true

		item, ok := byID[in.OrderItemID]
		if !ok {
			return nil, decimal.Zero, pkgerrors.NotFound("order_item", in.OrderItemID.String())
		}
		if in.Quantity <= 0 {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		remaining := item.Quantity - returned[item.ID]
		if remaining <= 0 {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeReturnNotEligible, "order item already fully returned").
				WithDetails(pkgerrors.EntityDetails{Entity: "order_item", Key: item.ID.String()})
		}
		if in.Quantity > remaining {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds returnable quantity").
				WithDetails(map[string]any{"orderItemId": item.ID.String(), "requested": in.Quantity, "returnable": remaining})
		}
		if !allowPartial && in.Quantity != remaining {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "policy requires returning the full quantity")
		}

		amount := item.Price.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(moneyPlaces)
		total = total.Add(amount)
		items = append(items, models.ReturnItem{
			ID:           uuid.New(),
			ReturnID:     returnID,
			OrderItemID:  item.ID,
			Quantity:     in.Quantity,
			RefundAmount: amount,
			Condition:    trimmed(in.Condition),
		})
	}

	if !allowPartial {
		for _, item := range order.Items {
			if item.Quantity-returned[item.ID] > 0 && !seen[item.ID] {
				return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "policy requires returning every item on the order")
			}
		}
	}
	return items, total, nil
}

// Approve accepts a REQUESTED return and attaches a prepaid label. The label
// is fetched first; if the carrier fails the request stays REQUESTED.
func (s *service) Approve(ctx context.Context, returnID uuid.UUID, actor types.Actor, notes string) (*models.ReturnRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if current.Status != enums.ReturnStatusRequested {
		return nil, pkgerrors.InvalidTransition("return_request", current.ReturnNumber, string(current.Status), string(enums.ReturnStatusApproved))
	}
	requiresRMA := false
	if current.PolicyID != nil {
		policy, err := s.repo.FindPolicy(ctx, *current.PolicyID)
		if err != nil {
			return nil, mapLoadError(err, "return_policy", current.PolicyID.String())
		}
		requiresRMA = policy.RequiresRMA
	}

	label, err := s.labels.GenerateReturnLabel(ctx, current.ID, current.ReturnNumber)
	if err != nil {
		s.logg.Error(s.logg.WithReturnID(ctx, returnID.String()), "return label generation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate return label")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.lock(ctx, repo, returnID)
		if err != nil {
			return err
		}
		if request.Status != enums.ReturnStatusRequested {
			return pkgerrors.InvalidTransition("return_request", request.ReturnNumber, string(request.Status), string(enums.ReturnStatusApproved))
		}
		now := s.now()
		updates := map[string]any{
			"status":          enums.ReturnStatusApproved,
			"approved_at":     now,
			"carrier":         label.Carrier,
			"tracking_number": label.TrackingNumber,
			"label_url":       label.URL,
			"updated_at":      now,
		}
		if requiresRMA {
			updates["rma_number"] = "RMA-" + request.ReturnNumber
		}
		if text := strings.TrimSpace(notes); text != "" {
			updates["admin_notes"] = appendNote(request.AdminNotes, now, text)
		}
		if err := repo.Update(ctx, request.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve return")
		}
		request.Status = enums.ReturnStatusApproved
		request.Carrier = &label.Carrier
		request.TrackingNumber = &label.TrackingNumber
		request.LabelURL = &label.URL
		return s.emit(ctx, tx, enums.EventReturnApproved, request, actor, "")
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, returnID, enums.ReturnStatusApproved, actor)
	return s.Get(ctx, returnID)
}

// Reject closes a REQUESTED or APPROVED return with a reason.
func (s *service) Reject(ctx context.Context, returnID uuid.UUID, actor types.Actor, reason string) (*models.ReturnRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.lock(ctx, repo, returnID)
		if err != nil {
			return err
		}
		if !closable(request.Status) {
			return pkgerrors.InvalidTransition("return_request", request.ReturnNumber, string(request.Status), string(enums.ReturnStatusRejected))
		}
		now := s.now()
		if err := repo.Update(ctx, request.ID, map[string]any{
			"status":           enums.ReturnStatusRejected,
			"rejected_at":      now,
			"rejection_reason": reason,
			"updated_at":       now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject return")
		}
		request.Status = enums.ReturnStatusRejected
		return s.emit(ctx, tx, enums.EventReturnRejected, request, actor, reason)
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, returnID, enums.ReturnStatusRejected, actor)
	return s.Get(ctx, returnID)
}

// Cancel lets the customer withdraw a REQUESTED or APPROVED return.
func (s *service) Cancel(ctx context.Context, returnID, customerID uuid.UUID) (*models.ReturnRequest, error) {
	actor := types.CustomerActor(customerID)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.lock(ctx, repo, returnID)
		if err != nil {
			return err
		}
		if request.CustomerID == nil || *request.CustomerID != customerID {
			return pkgerrors.Ownership("return_request", returnID.String())
		}
		if !closable(request.Status) {
			return pkgerrors.InvalidTransition("return_request", request.ReturnNumber, string(request.Status), string(enums.ReturnStatusCancelled))
		}
		now := s.now()
		if err := repo.Update(ctx, request.ID, map[string]any{
			"status":       enums.ReturnStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel return")
		}
		request.Status = enums.ReturnStatusCancelled
		return s.emit(ctx, tx, enums.EventReturnCancelled, request, actor, "")
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, returnID, enums.ReturnStatusCancelled, actor)
	return s.Get(ctx, returnID)
}

func (s *service) Get(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	request, err := s.repo.FindByID(ctx, returnID)
	if err != nil {
		return nil, mapLoadError(err, "return_request", returnID.String())
	}
	return request, nil
}

func (s *service) GetForCustomer(ctx context.Context, returnID, customerID uuid.UUID) (*models.ReturnRequest, error) {
	request, err := s.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if request.CustomerID == nil || *request.CustomerID != customerID {
		return nil, pkgerrors.Ownership("return_request", returnID.String())
	}
	return request, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) (*pagination.Page[models.ReturnRequest], error) {
	return s.List(ctx, ListParams{CustomerID: &customerID, Pagination: page})
}

// ListForOrder returns every request on the order. A non-nil customerID must own the order.
func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID, customerID *uuid.UUID) ([]models.ReturnRequest, error) {
	if customerID != nil {
		order, err := s.repo.FindOrder(ctx, orderID)
		if err != nil {
			return nil, mapLoadError(err, "order", orderID.String())
		}
		if order.CustomerID == nil || *order.CustomerID != *customerID {
			return nil, pkgerrors.Ownership("order", orderID.String())
		}
	}
	requests, err := s.repo.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order returns")
	}
	return requests, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*pagination.Page[models.ReturnRequest], error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(params.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
	}
	return page, nil
}

func (s *service) lock(ctx context.Context, repo ReturnRepository, returnID uuid.UUID) (*models.ReturnRequest, error) {
	request, err := repo.FindForUpdate(ctx, returnID)
	if err != nil {
		return nil, mapLoadError(err, "return_request", returnID.String())
	}
	return request, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, request *models.ReturnRequest, actor types.Actor, reason string) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   request.ID,
		Actor:         &actor,
		OccurredAt:    s.now(),
		Data: payloads.ReturnEvent{
			ReturnID:       request.ID,
			ReturnNumber:   request.ReturnNumber,
			OrderID:        request.OrderID,
			CustomerID:     request.CustomerID,
			Status:         request.Status,
			RefundAmount:   request.RefundAmount,
			PaidAmount:     request.RefundPayout,
			Carrier:        request.Carrier,
			TrackingNumber: request.TrackingNumber,
			LabelURL:       request.LabelURL,
			Reason:         reason,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue return event")
	}
	return nil
}

func (s *service) transitioned(ctx context.Context, returnID uuid.UUID, to enums.ReturnStatus, actor types.Actor) {
	s.metrics.IncTransition("return", string(to))
	logCtx := s.logg.WithActor(s.logg.WithReturnID(ctx, returnID.String()), string(actor.Kind), actor.ID)
	s.logg.Info(s.logg.WithField(logCtx, "to", string(to)), "return transitioned")
}

func closable(status enums.ReturnStatus) bool {
	return status == enums.ReturnStatusRequested || status == enums.ReturnStatusApproved
}

func requireAdmin(actor types.Actor) error {
	if err := actor.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	return nil
}

// appendNote adds a timestamped line to the admin notes.
func appendNote(existing *string, at time.Time, text string) string {
	line := fmt.Sprintf("[%s] %s", at.UTC().Format(time.RFC3339), text)
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return line
	}
	return *existing + "\n" + line
}

func mapLoadError(err error, entity, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound(entity, key)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
