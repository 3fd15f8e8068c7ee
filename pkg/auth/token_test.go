package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: userID, Kind: enums.ActorAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID || claims.Kind != enums.ActorAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Issuer != cfg.Issuer || claims.ID == "" {
		t.Fatalf("registered claims not populated: %+v", claims.RegisteredClaims)
	}

	actor, err := claims.Actor()
	if err != nil {
		t.Fatalf("actor: %v", err)
	}
	if !actor.IsAdmin() || actor.ID != userID.String() {
		t.Fatalf("unexpected actor %s", actor)
	}
}

func TestParseAccessTokenRejectsExpiredAndForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()
	expired, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Kind: enums.ActorCustomer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	other := cfg
	other.Issuer = "someone-else"
	foreign, err := MintAccessToken(other, time.Now(), AccessTokenPayload{UserID: uuid.New(), Kind: enums.ActorCustomer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, foreign); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
}

func TestMintRejectsGuestAndSystemKinds(t *testing.T) {
	for _, kind := range []enums.ActorKind{enums.ActorGuest, enums.ActorSystem} {
		if _, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New(), Kind: kind}); err == nil {
			t.Fatalf("expected %s to be rejected", kind)
		}
	}
	claims := &AccessTokenClaims{UserID: uuid.New(), Kind: enums.ActorSystem}
	if _, err := claims.Actor(); err == nil {
		t.Fatalf("system claims must not produce an actor")
	}
}
