package returns

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// NotEligibleDetails explains a RETURN_NOT_ELIGIBLE error.
type NotEligibleDetails struct {
	OrderID  string     `json:"orderId"`
	Status   string     `json:"status"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// Eligibility is the query answer for a single order.
type Eligibility struct {
	OrderID  uuid.UUID           `json:"orderId"`
	Eligible bool                `json:"eligible"`
	Reason   string              `json:"reason,omitempty"`
	Deadline time.Time           `json:"deadline"`
	Policy   models.ReturnPolicy `json:"-"`
}

// ReturnDeadline is the last instant a return may be requested for order.
func ReturnDeadline(order models.Order, policy models.ReturnPolicy) time.Time {
	return order.CreatedAt.AddDate(0, 0, policy.ReturnWindowDays)
}

// IsOrderEligibleForReturn reports nil when the order has shipped or been
// delivered and now is still inside the policy's return window.
func IsOrderEligibleForReturn(order models.Order, policy models.ReturnPolicy, now time.Time) error {
	deadline := ReturnDeadline(order, policy)
	details := NotEligibleDetails{OrderID: order.ID.String(), Status: string(order.Status), Deadline: &deadline}
	if !order.Status.IsReturnable() {
		return pkgerrors.New(pkgerrors.CodeReturnNotEligible, "order has not shipped").WithDetails(details)
	}
	if !now.Before(deadline) {
		return pkgerrors.New(pkgerrors.CodeReturnNotEligible, "return window has closed").WithDetails(details)
	}
	return nil
}

// EligibleForReturn answers whether customerID may open a return on orderID.
// Ownership and lookup failures are errors; ineligibility is not.
func (s *service) EligibleForReturn(ctx context.Context, orderID, customerID uuid.UUID) (*Eligibility, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err, "order", orderID.String())
	}
	if order.CustomerID == nil || *order.CustomerID != customerID {
		return nil, pkgerrors.Ownership("order", orderID.String())
	}
	policy, err := s.ApplicablePolicy(ctx, order)
	if err != nil {
		return nil, err
	}
	result := &Eligibility{
		OrderID:  order.ID,
		Eligible: true,
		Deadline: ReturnDeadline(*order, *policy),
		Policy:   *policy,
	}
	if err := IsOrderEligibleForReturn(*order, *policy, s.now()); err != nil {
		result.Eligible = false
		if te := pkgerrors.As(err); te != nil {
			result.Reason = te.Message()
		}
	}
	return result, nil
}
