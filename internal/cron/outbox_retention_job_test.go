package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func seedOutboxRow(t *testing.T, conn *gorm.DB, createdAt time.Time, published bool, attempts int) uuid.UUID {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  attempts,
	}
	if published {
		at := createdAt.Add(time.Minute)
		row.PublishedAt = &at
	}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("seed outbox row: %v", err)
	}
	if err := conn.Model(&models.OutboxEvent{}).Where("id = ?", row.ID).UpdateColumn("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate outbox row: %v", err)
	}
	return row.ID
}

func TestOutboxRetentionJobPrunesSettledRows(t *testing.T) {
	client, conn := dbtest.Client(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)

	oldPublished := seedOutboxRow(t, conn, old, true, 1)
	oldDead := seedOutboxRow(t, conn, old, false, 10)
	oldPending := seedOutboxRow(t, conn, old, false, 3)
	recentPublished := seedOutboxRow(t, conn, recent, true, 1)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: testLogger(),
		DB:     client,
		Outbox: outbox.NewRepository(conn),
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var remaining []uuid.UUID
	if err := conn.Model(&models.OutboxEvent{}).Pluck("id", &remaining).Error; err != nil {
		t.Fatalf("list remaining: %v", err)
	}
	left := map[uuid.UUID]bool{}
	for _, id := range remaining {
		left[id] = true
	}
	if left[oldPublished] || left[oldDead] {
		t.Fatalf("settled rows survived: %v", remaining)
	}
	if !left[oldPending] || !left[recentPublished] {
		t.Fatalf("live or recent rows were pruned: %v", remaining)
	}
}

type failingPruner struct{}

func (failingPruner) DeleteSettledBefore(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, errors.New("boom")
}

type inlineTx struct{}

func (inlineTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), DB: inlineTx{}, Outbox: failingPruner{}})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
