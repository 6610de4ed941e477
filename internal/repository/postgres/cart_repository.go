package postgres

import (
	"context"
	"fmt"

	"github.com/dmwangi/medsupply/internal/domain/cart"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CartRepository implements cart.Repository using PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository creates a new CartRepository.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Upsert adds the product to the cart or replaces its quantity.
func (r *CartRepository) Upsert(ctx context.Context, item *cart.Item) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`,
		item.ID, item.UserID, item.ProductID, item.Quantity, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

// GetItems returns all items in the user's cart.
func (r *CartRepository) GetItems(ctx context.Context, userID uuid.UUID) ([]*cart.Item, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, user_id, product_id, quantity, created_at, updated_at
		 FROM cart_items WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	var items []*cart.Item
	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// Remove deletes one product from the user's cart.
func (r *CartRepository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

// Clear empties the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
