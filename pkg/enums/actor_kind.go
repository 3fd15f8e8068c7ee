package enums

import "fmt"

// ActorKind identifies who triggered an operation.
type ActorKind string

const (
	ActorCustomer ActorKind = "CUSTOMER"
	ActorAdmin    ActorKind = "ADMIN"
	ActorGuest    ActorKind = "GUEST"
	ActorSystem   ActorKind = "SYSTEM"
)

var validActorKinds = []ActorKind{
	ActorCustomer,
	ActorAdmin,
	ActorGuest,
	ActorSystem,
}

// String implements fmt.Stringer.
func (a ActorKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorKind.
func (a ActorKind) IsValid() bool {
	for _, candidate := range validActorKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorKind converts raw input into a ActorKind.
func ParseActorKind(value string) (ActorKind, error) {
	for _, candidate := range validActorKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor kind %q", value)
}
