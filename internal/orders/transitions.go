package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// UpdateStatus moves the fulfillment axis. CANCELLED goes through Cancel so
// stock is always restored.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor types.Actor, note string) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if target == enums.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, actor, note)
	}
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}

	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if !CanTransitionStatus(from, target) {
			return pkgerrors.InvalidTransition("order", order.OrderNumber, string(from), string(target))
		}
		now := s.now()
		if err := repo.Update(ctx, order.ID, statusUpdates(target, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if err := s.record(ctx, repo, order.ID, enums.HistoryStatusChanged, actor, ptr(string(from)), ptr(string(target)), optional(&note)); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventOrderStatusChanged, order.ID, actor, payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			From:        from,
			To:          target,
			Note:        strings.TrimSpace(note),
			ChangedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, orderID, "status", string(from), string(target), actor)
	return s.Get(ctx, orderID)
}

// UpdatePaymentStatus moves the payment axis. Refund outcomes are reachable
// only through ProcessRefund and ApplyReturnRefund.
func (s *service) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, target enums.PaymentStatus, actor types.Actor, note string) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status")
	}
	if target.IsRefundOutcome() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund statuses are set by refund processing")
	}
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}

	var from enums.PaymentStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		from = order.PaymentStatus
		if !CanTransitionPayment(from, target) {
			return pkgerrors.InvalidTransition("order_payment", order.OrderNumber, string(from), string(target))
		}
		now := s.now()
		if err := repo.Update(ctx, order.ID, paymentUpdates(target, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		if err := s.record(ctx, repo, order.ID, enums.HistoryPaymentStatusChanged, actor, ptr(string(from)), ptr(string(target)), optional(&note)); err != nil {
			return err
		}
		return s.emitPaymentChange(ctx, tx, order, from, target, actor)
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, orderID, "payment", string(from), string(target), actor)
	return s.Get(ctx, orderID)
}

// Cancel stops a PENDING or CONFIRMED order and restores every unit it reserved.
// Customers may only cancel their own orders.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor types.Actor, reason string) (*models.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}
	if actor.Kind == enums.ActorGuest {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "guests cannot cancel orders")
	}

	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if actor.IsCustomer() {
			customerID, _ := actor.CustomerID()
			if order.CustomerID == nil || *order.CustomerID != customerID {
				return pkgerrors.Ownership("order", orderID.String())
			}
		}
		from = order.Status
		if !order.Status.CanBeCancelled() {
			return pkgerrors.InvalidTransition("order", order.OrderNumber, string(from), string(enums.OrderStatusCancelled))
		}
		if _, err := s.stock.RestoreOrderItems(ctx, tx, order.Items, nil); err != nil {
			return err
		}
		now := s.now()
		if err := repo.Update(ctx, order.ID, statusUpdates(enums.OrderStatusCancelled, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if err := s.record(ctx, repo, order.ID, enums.HistoryStatusChanged, actor, ptr(string(from)), ptr(string(enums.OrderStatusCancelled)), optional(&reason)); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventOrderStatusChanged, order.ID, actor, payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			From:        from,
			To:          enums.OrderStatusCancelled,
			Note:        strings.TrimSpace(reason),
			ChangedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(ctx, orderID, "status", string(from), string(enums.OrderStatusCancelled), actor)
	return s.Get(ctx, orderID)
}

// AddNote appends a free-text entry to the order history.
func (s *service) AddNote(ctx context.Context, orderID uuid.UUID, actor types.Actor, note string) (*models.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}
	text := optional(&note)
	if text == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		return s.record(ctx, repo, order.ID, enums.HistoryNoteAdded, actor, nil, nil, text)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

// ReassignVendor moves every line, and therefore the order, to vendorID.
func (s *service) ReassignVendor(ctx context.Context, orderID, vendorID uuid.UUID, actor types.Actor, note string) (*models.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor reassignment requires an admin")
	}
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot change vendor").
				WithDetails(pkgerrors.EntityDetails{Entity: "order", Key: order.OrderNumber})
		}
		var previous *string
		if order.VendorID != nil {
			previous = ptr(order.VendorID.String())
		}
		if err := repo.UpdateItemsVendor(ctx, order.ID, &vendorID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassign item vendor")
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"vendor_id": vendorID, "updated_at": s.now()}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reassign order vendor")
		}
		return s.record(ctx, repo, order.ID, enums.HistoryVendorReassigned, actor, previous, ptr(vendorID.String()), optional(&note))
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func (s *service) lock(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindForUpdate(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err, orderID)
	}
	return order, nil
}

func (s *service) emitPaymentChange(ctx context.Context, tx *gorm.DB, order *models.Order, from, to enums.PaymentStatus, actor types.Actor) error {
	return s.emit(ctx, tx, enums.EventOrderPaymentStatusChanged, order.ID, actor, payloads.OrderPaymentStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        from,
		To:          to,
		ChangedAt:   s.now(),
	})
}

func (s *service) transitioned(ctx context.Context, orderID uuid.UUID, axis, from, to string, actor types.Actor) {
	s.metrics.IncTransition(axis, to)
	logCtx := s.logg.WithActor(s.logg.WithOrderID(ctx, orderID.String()), string(actor.Kind), actor.ID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{"axis": axis, "from": from, "to": to})
	s.logg.Info(logCtx, "order transitioned")
}
