package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultOutboxRetention  = 30 * 24 * time.Hour
	defaultTerminalAttempts = 10
	outboxRetentionJobName  = "outbox-retention"
)

type outboxPruner interface {
	DeleteSettledBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Outbox           outboxPruner
	Retention        time.Duration
	TerminalAttempts int
}

// OutboxRetentionJob prunes outbox rows that were delivered or dead-lettered
// longer ago than the retention period.
type OutboxRetentionJob struct {
	logg             *logger.Logger
	db               txRunner
	outbox           outboxPruner
	retention        time.Duration
	terminalAttempts int
	now              func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (*OutboxRetentionJob, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	attempts := params.TerminalAttempts
	if attempts <= 0 {
		attempts = defaultTerminalAttempts
	}
	return &OutboxRetentionJob{
		logg:             params.Logger,
		db:               params.DB,
		outbox:           params.Outbox,
		retention:        retention,
		terminalAttempts: attempts,
		now:              time.Now,
	}, nil
}

func (j *OutboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.DeleteSettledBefore(ctx, tx, cutoff, j.terminalAttempts)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox pruned")
	return nil
}
