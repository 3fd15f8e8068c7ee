package numbering

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator numbers documents PREFIX-<ULID>; numbers sort by creation time.
type ULIDGenerator struct {
	prefixes Prefixes
	now      Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator(prefixes Prefixes, now Clock, entropy io.Reader) *ULIDGenerator {
	if now == nil {
		now = time.Now
	}
	if entropy == nil {
		entropy = rand.Reader
	}
	return &ULIDGenerator{
		prefixes: prefixes,
		now:      now,
		entropy:  ulid.Monotonic(entropy, 0),
	}
}

func (g *ULIDGenerator) Next(_ context.Context, kind Kind) (string, error) {
	prefix, err := g.prefixes.lookup(kind)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	g.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("numbering: ulid: %w", err)
	}
	return prefix + "-" + id.String(), nil
}
