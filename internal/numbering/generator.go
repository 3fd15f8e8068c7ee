// Package numbering issues human-facing order and return numbers.
package numbering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Kind selects the document series a number belongs to.
type Kind string

const (
	KindOrder  Kind = "order"
	KindReturn Kind = "return"
)

// Generator hands out unique document numbers. Callers still rely on the
// unique index to catch collisions.
type Generator interface {
	Next(ctx context.Context, kind Kind) (string, error)
}

// Prefixes maps each kind to its printed prefix.
type Prefixes map[Kind]string

func PrefixesFromConfig(cfg config.OrdersConfig) Prefixes {
	return Prefixes{
		KindOrder:  cfg.NumberPrefix,
		KindReturn: cfg.ReturnNumberPrefix,
	}
}

func (p Prefixes) lookup(kind Kind) (string, error) {
	prefix, ok := p[kind]
	if !ok || strings.TrimSpace(prefix) == "" {
		return "", fmt.Errorf("numbering: no prefix for kind %q", kind)
	}
	return strings.ToUpper(strings.TrimSpace(prefix)), nil
}

// Clock returns the current time; injected so numbers are reproducible in tests.
type Clock func() time.Time

// NewFromConfig builds the generator selected by the numbering strategy.
func NewFromConfig(cfg config.OrdersConfig, seq redis.Sequencer) (Generator, error) {
	prefixes := PrefixesFromConfig(cfg)
	switch strings.ToLower(strings.TrimSpace(cfg.NumberingStrategy)) {
	case config.NumberingULID:
		return NewULIDGenerator(prefixes, nil, nil), nil
	case config.NumberingCounter, "":
		return NewCounterGenerator(seq, prefixes, nil)
	default:
		return nil, fmt.Errorf("numbering: unknown strategy %q", cfg.NumberingStrategy)
	}
}
