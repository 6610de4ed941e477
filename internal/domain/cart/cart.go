package cart

import (
	"context"
	"time"

	"github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/google/uuid"
)

// Item is one product line in a user's cart.
type Item struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewItem(userID, productID uuid.UUID, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, errors.NewValidationError("quantity", "must be greater than 0")
	}
	now := time.Now()
	return &Item{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Repository defines the interface for cart persistence
type Repository interface {
	// Upsert adds the product to the cart or replaces its quantity.
	Upsert(ctx context.Context, item *Item) error

	// GetItems returns all items in the user's cart.
	GetItems(ctx context.Context, userID uuid.UUID) ([]*Item, error)

	// Remove deletes one product from the user's cart.
	Remove(ctx context.Context, userID, productID uuid.UUID) error

	// Clear empties the user's cart.
	Clear(ctx context.Context, userID uuid.UUID) error
}
