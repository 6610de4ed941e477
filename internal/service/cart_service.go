package service

import (
	"context"

	"github.com/dmwangi/medsupply/internal/domain/cart"
	"github.com/dmwangi/medsupply/internal/domain/catalog"
	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/google/uuid"
)

// CartService manages a user's cart. Stock is only checked here as an early
// courtesy; the authoritative check happens at order creation.
type CartService struct {
	cartRepo    cart.Repository
	catalogRepo catalog.Repository
}

func NewCartService(cartRepo cart.Repository, catalogRepo catalog.Repository) *CartService {
	return &CartService{cartRepo: cartRepo, catalogRepo: catalogRepo}
}

// CartLine is a cart item joined with its current product.
type CartLine struct {
	Item    *cart.Item
	Product *catalog.Product
}

// AddItem puts a product in the cart, replacing any existing quantity.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cart.Item, error) {
	p, err := s.catalogRepo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, domainErrors.ErrProductInactive
	}
	if p.Stock < quantity {
		return nil, domainErrors.ErrInsufficientStock
	}

	item, err := cart.NewItem(userID, productID, quantity)
	if err != nil {
		return nil, err
	}
	if err := s.cartRepo.Upsert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetCart returns the cart lines with product details and the running total.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) ([]*CartLine, int64, error) {
	items, err := s.cartRepo.GetItems(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	lines := make([]*CartLine, 0, len(items))
	var total int64
	for _, it := range items {
		p, err := s.catalogRepo.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, &CartLine{Item: it, Product: p})
		total += p.PriceCents * int64(it.Quantity)
	}
	return lines, total, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return s.cartRepo.Remove(ctx, userID, productID)
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.cartRepo.Clear(ctx, userID)
}
