package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// outcome is what happened to one row in a batch.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

type delivery struct {
	event  models.OutboxEvent
	topic  string
	result outcome
	reason enums.OutboxDLQErrorReason
	err    error
}

type DispatcherParams struct {
	Config           config.OutboxConfig
	Logger           *logger.Logger
	DB               dbClient
	Topics           topicSource
	Repository       outboxRepository
	DLQ              dlqRepository
	Registry         eventResolver
	PublisherFactory publisherFactory
	Clock            func() time.Time
}

// Dispatcher drains outbox_events to Pub/Sub. Rows are locked with SKIP
// LOCKED so several dispatchers can share the table; a row is settled in the
// same transaction that fetched it.
type Dispatcher struct {
	logg         *logger.Logger
	db           dbClient
	topics       topicSource
	repo         outboxRepository
	dlq          dlqRepository
	registry     eventResolver
	factory      publisherFactory
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time

	mu         sync.Mutex
	publishers map[string]publisher
	jitter     *rand.Rand
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Topics == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		topics := params.Topics
		factory = func(topic string) publisher {
			return newGCPPublisher(topics.Publisher(topic))
		}
	}
	batch := params.Config.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := time.Duration(params.Config.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = defaultPollInterval
	}
	attempts := params.Config.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Dispatcher{
		logg:         params.Logger,
		db:           params.DB,
		topics:       params.Topics,
		repo:         params.Repository,
		dlq:          params.DLQ,
		registry:     params.Registry,
		factory:      factory,
		batchSize:    batch,
		maxAttempts:  attempts,
		pollInterval: poll,
		now:          clock,
		publishers:   map[string]publisher{},
		jitter:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run polls until ctx is cancelled. Failed batches back off exponentially up
// to maxBackoff; a full batch is followed immediately by the next one.
func (d *Dispatcher) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": d.db.Ping, "pubsub": d.topics.Ping} {
		if err := ping(ctx); err != nil {
			d.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	defer d.Close()

	backoff := d.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delivered, err := d.drain(ctx)
		wait := d.pollInterval
		switch {
		case err != nil:
			d.logg.Error(ctx, "outbox batch failed", err)
			backoff = min(backoff*2, maxBackoff)
			wait = backoff
		case delivered == d.batchSize:
			backoff = d.pollInterval
			continue
		default:
			backoff = d.pollInterval
		}
		if err := sleep(ctx, wait+d.jitterFor()); err != nil {
			return err
		}
	}
}

// drain handles one batch and reports how many rows it fetched.
func (d *Dispatcher) drain(ctx context.Context) (int, error) {
	fetched := 0
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := d.repo.FetchUnpublishedForPublish(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		fetched = len(events)
		for _, event := range events {
			if err := d.settle(ctx, tx, d.deliver(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return fetched, err
}

func (d *Dispatcher) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := d.registry.Resolve(event)
	if err != nil {
		return delivery{event: event, result: outcomeDeadLetter, reason: enums.OutboxDLQReasonUnroutable, err: err}
	}
	out := delivery{event: event, topic: resolved.Descriptor.Topic}
	out.err = d.publish(ctx, event, resolved)
	out.result, out.reason = classify(out.err, event.AttemptCount+1, d.maxAttempts)
	return out
}

// classify maps a publish error to what should happen to the row.
func classify(err error, attempt, maxAttempts int) (outcome, enums.OutboxDLQErrorReason) {
	if err == nil {
		return outcomePublished, ""
	}
	var nonRetryable registry.NonRetryableError
	if errors.As(err, &nonRetryable) {
		return outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable
	}
	if attempt >= maxAttempts {
		return outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts
	}
	return outcomeRetry, ""
}

func (d *Dispatcher) settle(ctx context.Context, tx *gorm.DB, out delivery) error {
	event := out.event
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if out.topic != "" {
		fields["topic"] = out.topic
	}
	logCtx := d.logg.WithFields(ctx, fields)

	switch out.result {
	case outcomePublished:
		if err := d.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		d.logg.Info(logCtx, "outbox event published")
	case outcomeRetry:
		d.logg.Warn(d.logg.WithField(logCtx, "error", out.err.Error()), "outbox publish failed, will retry")
		if err := d.repo.MarkFailedTx(tx, event.ID, out.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
	case outcomeDeadLetter:
		cause := out.err
		if out.reason == enums.OutboxDLQReasonMaxAttempts {
			cause = fmt.Errorf("max publish attempts reached: %w", out.err)
		}
		d.logg.Warn(d.logg.WithFields(logCtx, map[string]any{
			"error":        cause.Error(),
			"error_reason": out.reason,
		}), "outbox event dead-lettered")
		msg := cause.Error()
		if err := d.dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   out.reason,
			ErrorMessage:  &msg,
			AttemptCount:  event.AttemptCount,
			FailedAt:      d.now(),
		}); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := d.repo.MarkTerminalTx(tx, event.ID, cause, d.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := d.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, messageFor(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return brokerError(err)
}

// brokerError marks rejections that no retry can fix as non-retryable.
func brokerError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition:
		return registry.NewNonRetryableError(err)
	}
	return err
}

// messageFor carries the envelope as data; subscribers dedupe on event_id.
func messageFor(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (d *Dispatcher) publisherFor(topic string) publisher {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pub, ok := d.publishers[topic]; ok {
		return pub
	}
	pub := d.factory(topic)
	if pub != nil {
		d.publishers[topic] = pub
	}
	return pub
}

// Close flushes and stops every cached topic publisher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for topic, pub := range d.publishers {
		pub.Stop()
		delete(d.publishers, topic)
	}
}

func (d *Dispatcher) jitterFor() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.jitter.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
