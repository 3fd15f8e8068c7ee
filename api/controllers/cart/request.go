package cart

import "github.com/google/uuid"

type addItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

type mergeRequest struct {
	SessionID string `json:"sessionId" validate:"max=128"`
}
