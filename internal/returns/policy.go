package returns

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// FallbackPolicy is used when no default policy has been stored: buyer pays
// the flat return-shipping fee, no restocking fee, partial returns allowed.
func FallbackPolicy(cfg config.ReturnsConfig) (models.ReturnPolicy, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(cfg.FlatShippingFee))
	if err != nil {
		return models.ReturnPolicy{}, err
	}
	return models.ReturnPolicy{
		Name:                    "fallback",
		ReturnWindowDays:        cfg.FallbackWindowDays,
		RefundWindowDays:        cfg.FallbackRefundWindowDays,
		RestockingFeePercentage: decimal.Zero,
		ReturnShippingPaidBy:    enums.ReturnShippingBuyer,
		ReturnShippingFee:       fee,
		AllowPartialReturns:     true,
		IsActive:                true,
	}, nil
}

func validatePolicy(input CreatePolicyInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "policy name is required")
	case input.ReturnWindowDays <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "return window must be positive")
	case input.RefundWindowDays <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "refund window must be positive")
	case input.RestockingFeePercentage.IsNegative() || input.RestockingFeePercentage.GreaterThan(hundred):
		return pkgerrors.New(pkgerrors.CodeValidation, "restocking fee percentage must be between 0 and 100")
	case !input.ReturnShippingPaidBy.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown return shipping payer")
	case input.ReturnShippingFee.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "return shipping fee must not be negative")
	case input.FreeReturnThreshold != nil && input.FreeReturnThreshold.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "free return threshold must not be negative")
	}
	return nil
}

// CreatePolicy stores a policy, optionally making it the default.
func (s *service) CreatePolicy(ctx context.Context, input CreatePolicyInput) (*models.ReturnPolicy, error) {
	if err := validatePolicy(input); err != nil {
		return nil, err
	}
	policy := &models.ReturnPolicy{
		Name:                      strings.TrimSpace(input.Name),
		ReturnWindowDays:          input.ReturnWindowDays,
		RefundWindowDays:          input.RefundWindowDays,
		FreeReturnThreshold:       input.FreeReturnThreshold,
		RestockingFeePercentage:   input.RestockingFeePercentage,
		ReturnShippingPaidBy:      input.ReturnShippingPaidBy,
		ReturnShippingFee:         input.ReturnShippingFee.Round(moneyPlaces),
		RequiresRMA:               input.RequiresRMA,
		AllowPartialReturns:       input.AllowPartialReturns,
		RequiresOriginalPackaging: input.RequiresOriginalPackaging,
		IsActive:                  true,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.IsDefault {
			if err := repo.ClearDefault(ctx); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default policy")
			}
			policy.IsDefault = true
		}
		if err := repo.CreatePolicy(ctx, policy); err != nil {
			if db.IsUniqueViolation(err, "ux_return_policies_default") {
				return pkgerrors.New(pkgerrors.CodeConflict, "another default policy was set concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return policy")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"policy_id": policy.ID.String(), "default": policy.IsDefault}), "return policy created")
	return policy, nil
}

// SetDefault makes policyID the single default policy.
func (s *service) SetDefault(ctx context.Context, policyID uuid.UUID) (*models.ReturnPolicy, error) {
	var policy *models.ReturnPolicy
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindPolicy(ctx, policyID)
		if err != nil {
			return mapLoadError(err, "return_policy", policyID.String())
		}
		if !found.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "inactive policies cannot be the default").
				WithDetails(pkgerrors.EntityDetails{Entity: "return_policy", Key: policyID.String()})
		}
		if err := repo.ClearDefault(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default policy")
		}
		if err := repo.MarkDefault(ctx, policyID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set default policy")
		}
		found.IsDefault = true
		policy = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// DefaultPolicy loads the stored default policy.
func (s *service) DefaultPolicy(ctx context.Context) (*models.ReturnPolicy, error) {
	policy, err := s.repo.FindDefaultPolicy(ctx)
	if err != nil {
		return nil, mapLoadError(err, "return_policy", "default")
	}
	return policy, nil
}

// ApplicablePolicy is the policy governing returns on order. Policies are not
// per order yet, so this is the default or the configured fallback.
func (s *service) ApplicablePolicy(ctx context.Context, _ *models.Order) (*models.ReturnPolicy, error) {
	policy, err := s.repo.FindDefaultPolicy(ctx)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default return policy")
	}
	fallback := s.fallback
	return &fallback, nil
}
