// Package payments is the boundary to the payment collaborator.
package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RefundRequest asks the payment provider to return money. IdempotencyKey
// must be stable across retries of the same logical refund.
type RefundRequest struct {
	Reference      string
	IdempotencyKey string
	Amount         decimal.Decimal
	Reason         string
}

type RefundReceipt struct {
	ProviderRef string
	Amount      decimal.Decimal
	ProcessedAt time.Time
}

// Refunder moves money back to the customer.
type Refunder interface {
	Refund(ctx context.Context, req RefundRequest) (RefundReceipt, error)
}

// RecordingGateway acknowledges every refund and remembers receipts by
// idempotency key, replaying the first receipt on retries.
type RecordingGateway struct {
	logg *logger.Logger
	now  func() time.Time

	mu       sync.Mutex
	receipts map[string]RefundReceipt
	calls    int
}

func NewRecordingGateway(logg *logger.Logger) *RecordingGateway {
	return &RecordingGateway{
		logg:     logg,
		now:      time.Now,
		receipts: map[string]RefundReceipt{},
	}
}

func (g *RecordingGateway) Refund(ctx context.Context, req RefundRequest) (RefundReceipt, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return RefundReceipt{}, fmt.Errorf("refund idempotency key required")
	}
	if !req.Amount.IsPositive() {
		return RefundReceipt{}, fmt.Errorf("refund amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if receipt, ok := g.receipts[req.IdempotencyKey]; ok {
		return receipt, nil
	}
	receipt := RefundReceipt{
		ProviderRef: "rec_" + req.IdempotencyKey,
		Amount:      req.Amount,
		ProcessedAt: g.now().UTC(),
	}
	g.receipts[req.IdempotencyKey] = receipt

	if g.logg != nil {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"reference":       req.Reference,
			"idempotency_key": req.IdempotencyKey,
			"amount":          req.Amount.StringFixed(2),
		})
		g.logg.Info(logCtx, "refund recorded")
	}
	return receipt, nil
}

// Calls reports how many refund attempts reached the gateway.
func (g *RecordingGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
