package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows product listings.
type ListFilter struct {
	CategoryID *uuid.UUID
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Repository defines the interface for catalog persistence
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context, f ListFilter) ([]*Product, error)

	// AdjustStock applies delta to a product's stock atomically, failing
	// when the result would go negative.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error

	CreateCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context) ([]*Category, error)
}
