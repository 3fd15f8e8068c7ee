package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Kind   enums.ActorKind
	JTI    string
}

// AccessTokenClaims is the token issued by the identity provider. Only
// customer and admin principals carry tokens.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Kind   enums.ActorKind `json:"kind"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the actor threaded through the engines.
func (c *AccessTokenClaims) Actor() (types.Actor, error) {
	if c == nil || c.UserID == uuid.Nil {
		return types.Actor{}, fmt.Errorf("token missing user id")
	}
	switch c.Kind {
	case enums.ActorCustomer:
		return types.CustomerActor(c.UserID), nil
	case enums.ActorAdmin:
		return types.AdminActor(c.UserID), nil
	default:
		return types.Actor{}, fmt.Errorf("token kind %q cannot act", c.Kind)
	}
}
