package returns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// claim is what phase one hands to the payment call.
type claim struct {
	request     *models.ReturnRequest
	orderNumber string
	payout      decimal.Decimal
	paid        bool
	done        bool
}

// ProcessRefund pays out an approved return. The request is claimed under a
// lease and its payout reserved on the order, the provider is called outside
// any transaction with the return number as idempotency key, and the outcome
// is booked in a second transaction. A provider failure leaves the request
// REFUND_PROCESSING with last_refund_error set and is not returned as an
// error. A booking failure after the provider paid is recorded the same way
// and a retry skips straight to booking.
func (s *service) ProcessRefund(ctx context.Context, returnID uuid.UUID, actor types.Actor) (*models.ReturnRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithActor(s.logg.WithReturnID(ctx, returnID.String()), string(actor.Kind), actor.ID)

	claimed, err := s.claimRefund(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if claimed.done {
		s.logg.Info(logCtx, "return already refunded")
		return claimed.request, nil
	}

	request := claimed.request
	if claimed.payout.IsPositive() && !claimed.paid {
		_, err := s.refunder.Refund(ctx, payments.RefundRequest{
			Reference:      claimed.orderNumber,
			IdempotencyKey: request.ReturnNumber,
			Amount:         claimed.payout,
			Reason:         fmt.Sprintf("return %s", request.ReturnNumber),
		})
		if err != nil {
			s.logg.Error(logCtx, "return refund payment failed", err)
			s.metrics.IncRefund("return", "failed")
			return s.releaseClaim(ctx, returnID, err, false)
		}
	}

	if err := s.completeRefund(ctx, returnID, actor); err != nil {
		s.logg.Error(s.logg.WithField(logCtx, "payout", claimed.payout.StringFixed(moneyPlaces)), "return refund booking failed", err)
		s.metrics.IncRefund("return", "failed")
		if _, releaseErr := s.releaseClaim(ctx, returnID, err, true); releaseErr != nil {
			s.logg.Error(logCtx, "record refund booking failure", releaseErr)
		}
		return nil, err
	}
	s.metrics.IncRefund("return", "succeeded")
	s.transitioned(ctx, returnID, enums.ReturnStatusRefunded, actor)
	return s.Get(ctx, returnID)
}

func (s *service) claimRefund(ctx context.Context, returnID uuid.UUID) (*claim, error) {
	out := &claim{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.lock(ctx, repo, returnID)
		if err != nil {
			return err
		}
		out.request = request
		switch request.Status {
		case enums.ReturnStatusRefunded:
			out.done = true
			return nil
		case enums.ReturnStatusApproved:
		case enums.ReturnStatusRefundProcessing:
			if request.RefundClaimedAt != nil && s.now().Before(request.RefundClaimedAt.Add(s.lease)) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already in progress").
					WithDetails(pkgerrors.EntityDetails{Entity: "return_request", Key: request.ReturnNumber})
			}
		default:
			return pkgerrors.InvalidTransition("return_request", request.ReturnNumber, string(request.Status), string(enums.ReturnStatusRefundProcessing))
		}

		order, err := repo.FindOrder(ctx, request.OrderID)
		if err != nil {
			return mapLoadError(err, "order", request.OrderID.String())
		}
		out.orderNumber = order.OrderNumber

		now := s.now()
		updates := map[string]any{
			"status":            enums.ReturnStatusRefundProcessing,
			"refund_claimed_at": now,
			"updated_at":        now,
		}
		if request.RefundPayout == nil {
			payout, err := s.orders.ReserveReturnRefund(ctx, tx, order.ID, request.RefundAmount)
			if err != nil {
				return err
			}
			updates["refund_payout"] = payout
			request.RefundPayout = &payout
		}
		out.payout = *request.RefundPayout
		out.paid = request.RefundPaidAt != nil

		if err := repo.Update(ctx, request.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim return refund")
		}
		request.Status = enums.ReturnStatusRefundProcessing
		request.RefundClaimedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) completeRefund(ctx context.Context, returnID uuid.UUID, actor types.Actor) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.lock(ctx, repo, returnID)
		if err != nil {
			return err
		}
		if request.Status != enums.ReturnStatusRefundProcessing {
			return pkgerrors.InvalidTransition("return_request", request.ReturnNumber, string(request.Status), string(enums.ReturnStatusRefunded))
		}
		if request.RefundPayout == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "return refund has no reserved payout").
				WithDetails(pkgerrors.EntityDetails{Entity: "return_request", Key: request.ReturnNumber})
		}
		payout := *request.RefundPayout
		order, err := repo.FindOrder(ctx, request.OrderID)
		if err != nil {
			return mapLoadError(err, "order", request.OrderID.String())
		}

		quantities := make(map[uuid.UUID]int, len(request.Items))
		for _, item := range request.Items {
			quantities[item.OrderItemID] += item.Quantity
		}
		restored, err := s.stock.RestoreOrderItems(ctx, tx, order.Items, quantities)
		if err != nil {
			return err
		}

		if payout.IsPositive() {
			if err := s.orders.ApplyReturnRefund(ctx, tx, order.ID, payout, actor, request.ReturnNumber); err != nil {
				return err
			}
		}

		now := s.now()
		note := fmt.Sprintf("refunded %s, %d units restocked", payout.StringFixed(moneyPlaces), restored)
		if payout.LessThan(request.RefundAmount) {
			note = fmt.Sprintf("refunded %s of %s, order had no more refundable balance, %d units restocked",
				payout.StringFixed(moneyPlaces), request.RefundAmount.StringFixed(moneyPlaces), restored)
		}
		updates := map[string]any{
			"status":            enums.ReturnStatusRefunded,
			"refunded_at":       now,
			"refund_claimed_at": nil,
			"last_refund_error": nil,
			"admin_notes":       appendNote(request.AdminNotes, now, note),
			"updated_at":        now,
		}
		if request.RefundPaidAt == nil {
			updates["refund_paid_at"] = now
		}
		if err := repo.Update(ctx, request.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark return refunded")
		}
		request.Status = enums.ReturnStatusRefunded
		return s.emit(ctx, tx, enums.EventReturnRefunded, request, actor, "")
	})
}

// releaseClaim records the failure and frees the lease so the refund can be
// retried immediately. The payout reservation is kept so a retry pays the
// same amount under the same idempotency key. paid marks that the provider
// has already returned the money.
func (s *service) releaseClaim(ctx context.Context, returnID uuid.UUID, cause error, paid bool) (*models.ReturnRequest, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		updates := map[string]any{
			"last_refund_error": cause.Error(),
			"refund_claimed_at": nil,
			"updated_at":        now,
		}
		if paid {
			updates["refund_paid_at"] = now
		}
		return s.repo.WithTx(tx).Update(ctx, returnID, updates)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund failure")
	}
	return s.Get(ctx, returnID)
}
