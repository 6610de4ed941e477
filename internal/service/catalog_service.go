package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmwangi/medsupply/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const productCacheTTL = 5 * time.Minute

// CatalogService handles product and category management. Single-product
// reads go through a Redis cache; writes invalidate it.
type CatalogService struct {
	repo   catalog.Repository
	cache  *redis.Client
	logger zerolog.Logger
}

func NewCatalogService(repo catalog.Repository, cache *redis.Client, logger zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, cache: cache, logger: logger}
}

// CreateProductRequest holds the input for adding a product.
// Controllers convert their HTTP DTOs to this type.
type CreateProductRequest struct {
	CategoryID  uuid.UUID
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Stock       int
}

func (s *CatalogService) CreateProduct(ctx context.Context, req CreateProductRequest) (*catalog.Product, error) {
	p, err := catalog.NewProduct(req.CategoryID, req.Name, req.Slug, req.Description, req.PriceCents, req.Stock)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProductRequest carries the mutable product fields. Nil means leave
// unchanged.
type UpdateProductRequest struct {
	Name        *string
	Description *string
	PriceCents  *int64
	Stock       *int
	IsActive    *bool
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*catalog.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.PriceCents != nil {
		p.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	p.UpdatedAt = time.Now()

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.invalidateProduct(ctx, id)
	return p, nil
}

// GetProduct reads through the cache.
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	key := productCacheKey(id)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var p catalog.Product
			if json.Unmarshal(raw, &p) == nil {
				return &p, nil
			}
		}
	}

	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, raw, productCacheTTL).Err(); err != nil {
				s.logger.Debug().Err(err).Str("product_id", id.String()).Msg("Product cache write failed")
			}
		}
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, f catalog.ListFilter) ([]*catalog.Product, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.repo.ListProducts(ctx, f)
}

func (s *CatalogService) CreateCategory(ctx context.Context, name, slug, description string) (*catalog.Category, error) {
	c, err := catalog.NewCategory(name, slug, description)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*catalog.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *CatalogService) invalidateProduct(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, productCacheKey(id)).Err(); err != nil {
		s.logger.Debug().Err(err).Str("product_id", id.String()).Msg("Product cache invalidation failed")
	}
}

func productCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("product:%s", id)
}
