package order

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows order listings.
type ListFilter struct {
	UserID *uuid.UUID
	Status *OrderStatus
	Limit  int
	Offset int
}

// Repository defines the interface for order persistence
type Repository interface {
	// Create persists an order with its items.
	Create(ctx context.Context, o *Order) error

	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// List lists orders with optional filters.
	List(ctx context.Context, f ListFilter) ([]*Order, error)

	// UpdateStatus persists a fulfilment status change.
	UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error

	// MarkPaid flips payment_status from unpaid to paid as a single
	// conditional update. Returns true when this call performed the flip,
	// false when the order was already paid.
	MarkPaid(ctx context.Context, id uuid.UUID) (bool, error)
}
