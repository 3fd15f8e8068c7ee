package types

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestActorValidate(t *testing.T) {
	if err := CustomerActor(uuid.New()).Validate(); err != nil {
		t.Fatalf("customer actor should be valid: %v", err)
	}
	if err := (Actor{Kind: "ROBOT", ID: "x"}).Validate(); err == nil {
		t.Fatalf("expected invalid kind error")
	}
	if err := (Actor{Kind: enums.ActorAdmin}).Validate(); err == nil {
		t.Fatalf("expected missing id error")
	}
}

func TestActorCustomerID(t *testing.T) {
	id := uuid.New()
	got, ok := CustomerActor(id).CustomerID()
	if !ok || got != id {
		t.Fatalf("expected customer id %s, got %s (%v)", id, got, ok)
	}
	if _, ok := AdminActor(id).CustomerID(); ok {
		t.Fatalf("admin actor must not resolve a customer id")
	}
}

func TestAddressSnapshotRoundTripThroughDriver(t *testing.T) {
	in := AddressSnapshot{FullName: "Ada", Phone: "555", Area: "North", AddressLine: "1 Main", City: "Springfield"}
	raw, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var out AddressSnapshot
	if err := out.Scan([]byte(raw.(string))); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
	if err := (AddressSnapshot{}).Validate(); err == nil {
		t.Fatalf("empty snapshot must not validate")
	}
}
