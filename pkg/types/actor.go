package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Actor is the tagged identity recorded on every audited mutation.
type Actor struct {
	Kind enums.ActorKind `json:"kind"`
	ID   string          `json:"id"`
}

func CustomerActor(id uuid.UUID) Actor {
	return Actor{Kind: enums.ActorCustomer, ID: id.String()}
}

func AdminActor(id uuid.UUID) Actor {
	return Actor{Kind: enums.ActorAdmin, ID: id.String()}
}

func GuestActor(sessionID string) Actor {
	return Actor{Kind: enums.ActorGuest, ID: sessionID}
}

func SystemActor(name string) Actor {
	return Actor{Kind: enums.ActorSystem, ID: name}
}

func (a Actor) Validate() error {
	if !a.Kind.IsValid() {
		return fmt.Errorf("actor: invalid kind %q", a.Kind)
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("actor: id required")
	}
	return nil
}

func (a Actor) IsAdmin() bool    { return a.Kind == enums.ActorAdmin }
func (a Actor) IsCustomer() bool { return a.Kind == enums.ActorCustomer }

// CustomerID parses the id of a customer actor.
func (a Actor) CustomerID() (uuid.UUID, bool) {
	if a.Kind != enums.ActorCustomer {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}
