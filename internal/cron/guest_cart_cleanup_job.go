package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultGuestCartTTL     = 30 * 24 * time.Hour
	defaultGuestCartBatch   = 500
	guestCartCleanupJobName = "guest-cart-cleanup"
)

type staleCartStore interface {
	DeleteStaleGuestCarts(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type GuestCartCleanupJobParams struct {
	Logger    *logger.Logger
	Carts     staleCartStore
	TTL       time.Duration
	BatchSize int
}

// GuestCartCleanupJob deletes guest carts, with their items, that have not
// been touched within the TTL. Customer carts are never removed.
type GuestCartCleanupJob struct {
	logg  *logger.Logger
	carts staleCartStore
	ttl   time.Duration
	batch int
	now   func() time.Time
}

func NewGuestCartCleanupJob(params GuestCartCleanupJobParams) (*GuestCartCleanupJob, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultGuestCartTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultGuestCartBatch
	}
	return &GuestCartCleanupJob{
		logg:  params.Logger,
		carts: params.Carts,
		ttl:   ttl,
		batch: batch,
		now:   time.Now,
	}, nil
}

func (j *GuestCartCleanupJob) Name() string { return guestCartCleanupJobName }

// Run deletes in batches until a short batch shows nothing stale is left.
func (j *GuestCartCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.carts.DeleteStaleGuestCarts(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("delete stale guest carts: %w", err)
		}
		total += n
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"carts_deleted": total,
	}), "guest carts cleaned")
	return nil
}
