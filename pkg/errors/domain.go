package errors

import "fmt"

// EntityDetails identifies the record an error refers to.
type EntityDetails struct {
	Entity string `json:"entity"`
	Key    string `json:"key"`
}

// TransitionDetails describes a rejected state change.
type TransitionDetails struct {
	Entity    string `json:"entity"`
	Key       string `json:"key,omitempty"`
	Current   string `json:"current"`
	Attempted string `json:"attempted"`
}

// StockDetails describes a failed stock check.
type StockDetails struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// NotFound reports a missing entity by kind and lookup key.
func NotFound(entity, key string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetails(EntityDetails{Entity: entity, Key: key})
}

// InvalidTransition reports a state change that the state machine forbids.
func InvalidTransition(entity, key, from, to string) *Error {
	return New(CodeStateConflict, fmt.Sprintf("%s cannot move from %s to %s", entity, from, to)).
		WithDetails(TransitionDetails{Entity: entity, Key: key, Current: from, Attempted: to})
}

// Ownership reports an entity that does not belong to the acting customer.
func Ownership(entity, key string) *Error {
	return New(CodeForbidden, fmt.Sprintf("%s does not belong to the current customer", entity)).
		WithDetails(EntityDetails{Entity: entity, Key: key})
}

func ProductUnavailable(productID string) *Error {
	return New(CodeProductUnavailable, "product is not available for purchase").
		WithDetails(EntityDetails{Entity: "product", Key: productID})
}

func InsufficientStock(productID string, requested, available int) *Error {
	return New(CodeInsufficientStock, "not enough stock for requested quantity").
		WithDetails(StockDetails{ProductID: productID, Requested: requested, Available: available})
}
