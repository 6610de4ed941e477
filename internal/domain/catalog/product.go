package catalog

import (
	"time"

	"github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/google/uuid"
)

// Product is a medical device in the catalog. Prices are stored in cents
// (KES).
type Product struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Stock       int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProduct(categoryID uuid.UUID, name, slug, description string, priceCents int64, stock int) (*Product, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", "cannot be empty")
	}
	if slug == "" {
		return nil, errors.NewValidationError("slug", "cannot be empty")
	}
	if priceCents <= 0 {
		return nil, errors.NewValidationError("price", "must be greater than 0")
	}
	if stock < 0 {
		return nil, errors.NewValidationError("stock", "cannot be negative")
	}

	now := time.Now()
	return &Product{
		ID:          uuid.New(),
		CategoryID:  categoryID,
		Name:        name,
		Slug:        slug,
		Description: description,
		PriceCents:  priceCents,
		Stock:       stock,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ReserveStock decrements stock for an order line.
func (p *Product) ReserveStock(qty int) error {
	if !p.IsActive {
		return errors.ErrProductInactive
	}
	if qty <= 0 {
		return errors.NewValidationError("quantity", "must be greater than 0")
	}
	if p.Stock < qty {
		return errors.ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now()
	return nil
}

type Category struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description string
	CreatedAt   time.Time
}

func NewCategory(name, slug, description string) (*Category, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", "cannot be empty")
	}
	if slug == "" {
		return nil, errors.NewValidationError("slug", "cannot be empty")
	}
	return &Category{
		ID:          uuid.New(),
		Name:        name,
		Slug:        slug,
		Description: description,
		CreatedAt:   time.Now(),
	}, nil
}
