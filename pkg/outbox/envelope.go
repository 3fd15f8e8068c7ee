package outbox

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *types.Actor    `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
