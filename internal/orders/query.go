package orders

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Stats aggregates counts and money over the filtered orders. Gross revenue
// sums final amounts of orders in an IsPaid payment status.
func (r *repository) Stats(ctx context.Context, filter StatsFilter) (*Stats, error) {
	scope := ListParams{
		VendorID:    filter.VendorID,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
	}
	stats := &Stats{
		ByStatus:        map[enums.OrderStatus]int64{},
		ByPaymentStatus: map[enums.PaymentStatus]int64{},
	}

	var byStatus []struct {
		Status enums.OrderStatus
		Count  int64
	}
	if err := r.filtered(ctx, scope).Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
		stats.TotalOrders += row.Count
	}

	var byPayment []struct {
		PaymentStatus enums.PaymentStatus
		Count         int64
	}
	if err := r.filtered(ctx, scope).Select("payment_status, COUNT(*) AS count").Group("payment_status").Scan(&byPayment).Error; err != nil {
		return nil, err
	}
	for _, row := range byPayment {
		stats.ByPaymentStatus[row.PaymentStatus] = row.Count
	}

	var paid struct {
		Gross     decimal.Decimal
		PaidCount int64
	}
	err := r.filtered(ctx, scope).
		Where("payment_status IN ?", []enums.PaymentStatus{enums.PaymentStatusPaid, enums.PaymentStatusRefunded}).
		Select("COALESCE(SUM(final_amount), 0) AS gross, COUNT(*) AS paid_count").
		Scan(&paid).Error
	if err != nil {
		return nil, err
	}

	var refunded struct {
		Refunded decimal.Decimal
	}
	if err := r.filtered(ctx, scope).Select("COALESCE(SUM(refunded_amount), 0) AS refunded").Scan(&refunded).Error; err != nil {
		return nil, err
	}

	stats.GrossRevenue = paid.Gross.Round(moneyPlaces)
	stats.RefundedAmount = refunded.Refunded.Round(moneyPlaces)
	stats.AverageOrderValue = decimal.Zero
	if paid.PaidCount > 0 {
		stats.AverageOrderValue = stats.GrossRevenue.Div(decimal.NewFromInt(paid.PaidCount)).Round(moneyPlaces)
	}
	return stats, nil
}

// List returns a page of orders matching params.
func (s *service) List(ctx context.Context, params ListParams) (*pagination.Page[models.Order], error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if params.PaymentStatus != nil && !params.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status filter")
	}
	if params.CreatedFrom != nil && params.CreatedTo != nil && params.CreatedTo.Before(*params.CreatedFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "createdTo must not precede createdFrom")
	}
	if _, err := pagination.ParseCursor(params.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return page, nil
}

func (s *service) Stats(ctx context.Context, filter StatsFilter) (*Stats, error) {
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedTo.Before(*filter.CreatedFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "createdTo must not precede createdFrom")
	}
	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute order stats")
	}
	return stats, nil
}
