package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmwangi/medsupply/internal/domain/catalog"
	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository implements catalog.Repository using PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const productColumns = `id, category_id, name, slug, description, price_cents, stock, is_active, created_at, updated_at`

// CreateProduct inserts a new product.
func (r *CatalogRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.CategoryID, p.Name, p.Slug, p.Description,
		p.PriceCents, p.Stock, p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateSlug
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by ID.
func (r *CatalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.scanProduct(r.db(ctx).QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// UpdateProduct updates an existing product.
func (r *CatalogRepository) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE products SET
		  category_id=$1, name=$2, slug=$3, description=$4,
		  price_cents=$5, stock=$6, is_active=$7, updated_at=$8
		 WHERE id=$9`,
		p.CategoryID, p.Name, p.Slug, p.Description,
		p.PriceCents, p.Stock, p.IsActive, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrProductNotFound
	}
	return nil
}

// ListProducts lists products with optional filters.
func (r *CatalogRepository) ListProducts(ctx context.Context, f catalog.ListFilter) ([]*catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.CategoryID != nil {
		query += fmt.Sprintf(" AND category_id = $%d", argIdx)
		args = append(args, *f.CategoryID)
		argIdx++
	}
	if f.Search != "" {
		query += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+f.Search+"%")
		argIdx++
	}
	if f.ActiveOnly {
		query += " AND is_active = true"
	}

	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)
	argIdx++
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*catalog.Product
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AdjustStock applies delta atomically, failing when stock would go negative.
func (r *CatalogRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE products SET stock = stock + $1, updated_at = now()
		 WHERE id = $2 AND stock + $1 >= 0`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrInsufficientStock
	}
	return nil
}

// CreateCategory inserts a new category.
func (r *CatalogRepository) CreateCategory(ctx context.Context, c *catalog.Category) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO categories (id, name, slug, description, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.Name, c.Slug, c.Description, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateSlug
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// ListCategories lists all categories.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]*catalog.Category, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, name, slug, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (r *CatalogRepository) scanProduct(row scanner) (*catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description,
		&p.PriceCents, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}
