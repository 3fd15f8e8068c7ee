package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ProcessRefund is the admin refund. A refund of the whole remaining amount
// moves the order to REFUNDED and puts every reserved unit back on the shelf.
// The payment call happens inside the transaction; a provider failure rolls
// everything back.
func (s *service) ProcessRefund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string, actor types.Actor) (*models.Order, error) {
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actor")
	}
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refunds require an admin")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason is required")
	}
	amount = amount.Round(moneyPlaces)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	var target enums.PaymentStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lock(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only PAID orders can be refunded").
				WithDetails(pkgerrors.TransitionDetails{
					Entity:    "order_payment",
					Key:       order.OrderNumber,
					Current:   string(order.PaymentStatus),
					Attempted: string(enums.PaymentStatusRefunded),
				})
		}
		refundable := refundableAmount(order)
		if amount.GreaterThan(refundable) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds the refundable amount").
				WithDetails(map[string]string{
					"refundable": refundable.StringFixed(moneyPlaces),
					"reserved":   order.RefundReserved.StringFixed(moneyPlaces),
				})
		}

		refunded := order.RefundedAmount.Add(amount)
		target = enums.PaymentStatusPartiallyRefunded
		if refunded.Equal(order.FinalAmount) {
			target = enums.PaymentStatusRefunded
		}

		if _, err := s.refunder.Refund(ctx, payments.RefundRequest{
			Reference:      order.OrderNumber,
			IdempotencyKey: fmt.Sprintf("%s:refund:%s", order.OrderNumber, refunded.StringFixed(moneyPlaces)),
			Amount:         amount,
			Reason:         reason,
		}); err != nil {
			s.metrics.IncRefund("admin", "failed")
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider refund failed")
		}

		restored := 0
		if target == enums.PaymentStatusRefunded {
			restored, err = s.stock.RestoreOrderItems(ctx, tx, order.Items, nil)
			if err != nil {
				return err
			}
		}

		updates := paymentUpdates(target, s.now())
		updates["refunded_amount"] = refunded
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}
		note := fmt.Sprintf("refunded %s: %s", amount.StringFixed(moneyPlaces), reason)
		if err := s.record(ctx, repo, order.ID, enums.HistoryRefundProcessed, actor, ptr(string(order.PaymentStatus)), ptr(string(target)), &note); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventOrderRefunded, order.ID, actor, payloads.OrderRefundedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			Amount:         amount,
			RefundedAmount: refunded,
			PaymentStatus:  target,
			Reason:         reason,
			StockRestored:  restored > 0,
		}); err != nil {
			return err
		}
		return s.emitPaymentChange(ctx, tx, order, order.PaymentStatus, target, actor)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncRefund("admin", "succeeded")
	s.transitioned(ctx, orderID, "payment", string(enums.PaymentStatusPaid), string(target), actor)
	return s.Get(ctx, orderID)
}

// ReserveReturnRefund sets aside up to amount of the order's refundable money
// for a return refund and returns what was reserved. A fully refunded order
// reserves nothing. The reservation holds
// until ApplyReturnRefund books it, so concurrent refunds cannot pay out
// money a return has already claimed.
func (s *service) ReserveReturnRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInternal, "refund reservation must run inside a transaction")
	}
	repo := s.repo.WithTx(tx)
	order, err := s.lock(ctx, repo, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	if order.PaymentStatus == enums.PaymentStatusRefunded {
		return decimal.Zero, nil
	}
	if err := requireCaptured(order); err != nil {
		return decimal.Zero, err
	}

	reserved := decimal.Min(amount.Round(moneyPlaces), refundableAmount(order))
	if !reserved.IsPositive() {
		return decimal.Zero, nil
	}
	if err := repo.Update(ctx, order.ID, map[string]any{
		"refund_reserved_amount": order.RefundReserved.Add(reserved),
		"updated_at":             s.now(),
	}); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve return refund")
	}
	return reserved, nil
}

// ApplyReturnRefund books a reserved return refund the provider has paid. It
// runs inside the caller's transaction and fails when amount was not reserved.
func (s *service) ApplyReturnRefund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amount decimal.Decimal, actor types.Actor, returnNumber string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "return refund must run inside a transaction")
	}
	amount = amount.Round(moneyPlaces)
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "return refund amount must be positive")
	}
	repo := s.repo.WithTx(tx)
	order, err := s.lock(ctx, repo, orderID)
	if err != nil {
		return err
	}
	from := order.PaymentStatus
	if from != enums.PaymentStatusPaid && from != enums.PaymentStatusPartiallyRefunded {
		return pkgerrors.InvalidTransition("order_payment", order.OrderNumber, string(from), string(enums.PaymentStatusPartiallyRefunded))
	}
	if amount.GreaterThan(order.RefundReserved) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "return refund exceeds the reserved amount").
			WithDetails(map[string]string{
				"order":    order.OrderNumber,
				"amount":   amount.StringFixed(moneyPlaces),
				"reserved": order.RefundReserved.StringFixed(moneyPlaces),
			})
	}

	refunded := order.RefundedAmount.Add(amount)
	target := enums.PaymentStatusPartiallyRefunded
	if refunded.Equal(order.FinalAmount) {
		target = enums.PaymentStatusRefunded
	}

	updates := paymentUpdates(target, s.now())
	updates["refunded_amount"] = refunded
	updates["refund_reserved_amount"] = order.RefundReserved.Sub(amount)
	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record return refund")
	}
	note := fmt.Sprintf("return %s refunded %s", returnNumber, amount.StringFixed(moneyPlaces))
	if err := s.record(ctx, repo, order.ID, enums.HistoryReturnRefunded, actor, ptr(string(from)), ptr(string(target)), &note); err != nil {
		return err
	}
	if from != target {
		if err := s.emitPaymentChange(ctx, tx, order, from, target, actor); err != nil {
			return err
		}
	}
	return nil
}

// refundableAmount is what the order can still pay back outside any return
// reservation.
func refundableAmount(order *models.Order) decimal.Decimal {
	available := order.FinalAmount.Sub(order.RefundedAmount).Sub(order.RefundReserved)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

func requireCaptured(order *models.Order) error {
	if order.PaymentStatus == enums.PaymentStatusPaid || order.PaymentStatus == enums.PaymentStatusPartiallyRefunded {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no captured payment to refund").
		WithDetails(pkgerrors.TransitionDetails{
			Entity:    "order",
			Key:       order.OrderNumber,
			Current:   string(order.PaymentStatus),
			Attempted: string(enums.PaymentStatusRefunded),
		})
}
