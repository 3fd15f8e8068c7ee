package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	dayLayout  = "20060102"
	counterTTL = 48 * time.Hour
)

// CounterGenerator numbers documents PREFIX-YYYYMMDD-NNNNNN using a redis counter per kind and UTC day.
type CounterGenerator struct {
	seq      redis.Sequencer
	prefixes Prefixes
	now      Clock
}

func NewCounterGenerator(seq redis.Sequencer, prefixes Prefixes, now Clock) (*CounterGenerator, error) {
	if seq == nil {
		return nil, fmt.Errorf("sequencer required")
	}
	if now == nil {
		now = time.Now
	}
	return &CounterGenerator{seq: seq, prefixes: prefixes, now: now}, nil
}

func (g *CounterGenerator) Next(ctx context.Context, kind Kind) (string, error) {
	prefix, err := g.prefixes.lookup(kind)
	if err != nil {
		return "", err
	}
	day := g.now().UTC().Format(dayLayout)
	n, err := g.seq.IncrWithTTL(ctx, g.seq.SequenceKey(string(kind), day), counterTTL)
	if err != nil {
		return "", fmt.Errorf("numbering: next %s sequence: %w", kind, err)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, day, n), nil
}
