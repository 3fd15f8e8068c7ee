// Package shipping is the boundary to the return-label collaborator.
package shipping

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type Label struct {
	URL            string
	TrackingNumber string
	Carrier        string
}

// LabelGenerator issues prepaid return labels.
type LabelGenerator interface {
	GenerateReturnLabel(ctx context.Context, returnID uuid.UUID, returnNumber string) (Label, error)
}

// StaticLabelGenerator builds label links under a fixed base URL for a single carrier.
type StaticLabelGenerator struct {
	carrier string
	baseURL *url.URL
	now     func() time.Time
}

func NewStaticLabelGenerator(cfg config.ShippingConfig) (*StaticLabelGenerator, error) {
	if strings.TrimSpace(cfg.ReturnCarrier) == "" {
		return nil, fmt.Errorf("return carrier required")
	}
	base, err := url.Parse(strings.TrimSpace(cfg.LabelBaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("label base url must be absolute: %q", cfg.LabelBaseURL)
	}
	return &StaticLabelGenerator{carrier: cfg.ReturnCarrier, baseURL: base, now: time.Now}, nil
}

func (g *StaticLabelGenerator) GenerateReturnLabel(_ context.Context, returnID uuid.UUID, returnNumber string) (Label, error) {
	if returnID == uuid.Nil || strings.TrimSpace(returnNumber) == "" {
		return Label{}, fmt.Errorf("return id and number required")
	}
	tracking, err := ulid.New(ulid.Timestamp(g.now()), rand.Reader)
	if err != nil {
		return Label{}, fmt.Errorf("tracking number: %w", err)
	}
	link := g.baseURL.JoinPath("returns", returnNumber, "label.pdf")
	return Label{
		URL:            link.String(),
		TrackingNumber: tracking.String(),
		Carrier:        g.carrier,
	}, nil
}
