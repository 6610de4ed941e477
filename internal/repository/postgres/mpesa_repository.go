package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/mpesa"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MpesaRepository implements mpesa.Repository using PostgreSQL.
type MpesaRepository struct {
	pool *pgxpool.Pool
}

// NewMpesaRepository creates a new MpesaRepository.
func NewMpesaRepository(pool *pgxpool.Pool) *MpesaRepository {
	return &MpesaRepository{pool: pool}
}

func (r *MpesaRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const txnColumns = `id, order_id, checkout_request_id, merchant_request_id, phone_number,
	amount_cents, account_reference, status, result_code, result_desc,
	receipt_number, transaction_date, created_at, updated_at, completed_at`

// Create inserts a new pending transaction.
func (r *MpesaRepository) Create(ctx context.Context, t *mpesa.Transaction) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO mpesa_transactions (`+txnColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		t.ID, t.OrderID, t.CheckoutRequestID, t.MerchantRequestID, t.PhoneNumber,
		t.AmountCents, t.AccountReference, string(t.Status), t.ResultCode, t.ResultDesc,
		t.ReceiptNumber, t.TransactionDate, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mpesa transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its internal ID.
func (r *MpesaRepository) GetByID(ctx context.Context, id uuid.UUID) (*mpesa.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+txnColumns+` FROM mpesa_transactions WHERE id = $1`, id))
}

// GetByCheckoutRequestID retrieves a transaction by the provider's checkout
// identifier, the sole correlation key for callbacks.
func (r *MpesaRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*mpesa.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+txnColumns+` FROM mpesa_transactions WHERE checkout_request_id = $1`, checkoutRequestID))
}

// ListByOrder retrieves all transactions for an order.
func (r *MpesaRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*mpesa.Transaction, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+txnColumns+` FROM mpesa_transactions WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*mpesa.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ConditionalTransition executes the terminal transition as a single
// compare-and-set UPDATE guarded on status='pending'. Concurrent callers
// (callback vs. status query) cannot both see a row change, which is what
// keeps the order-paid side effect single-fire.
func (r *MpesaRepository) ConditionalTransition(ctx context.Context, checkoutRequestID string, res mpesa.Result) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE mpesa_transactions SET
		  status = $1, result_code = $2, result_desc = $3,
		  receipt_number = $4, transaction_date = $5,
		  updated_at = now(), completed_at = now()
		 WHERE checkout_request_id = $6 AND status = 'pending'`,
		string(res.Status), res.ResultCode, res.ResultDesc,
		res.ReceiptNumber, res.PaidAt, checkoutRequestID,
	)
	if err != nil {
		return false, fmt.Errorf("transition transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListStalePending returns pending transactions older than cutoff.
func (r *MpesaRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*mpesa.Transaction, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+txnColumns+` FROM mpesa_transactions
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	defer rows.Close()

	var txns []*mpesa.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// RecordCallback stores a raw provider callback for audit.
func (r *MpesaRepository) RecordCallback(ctx context.Context, cb *mpesa.Callback) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO mpesa_callbacks
		 (id, merchant_request_id, checkout_request_id, result_code, result_desc, payload, processing_error, received_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		cb.ID, cb.MerchantRequestID, cb.CheckoutRequestID, cb.ResultCode, cb.ResultDesc,
		cb.Payload, cb.ProcessingError, cb.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("record callback: %w", err)
	}
	return nil
}

func (r *MpesaRepository) scanTransaction(row scanner) (*mpesa.Transaction, error) {
	var t mpesa.Transaction
	var status string
	err := row.Scan(
		&t.ID, &t.OrderID, &t.CheckoutRequestID, &t.MerchantRequestID, &t.PhoneNumber,
		&t.AmountCents, &t.AccountReference, &status, &t.ResultCode, &t.ResultDesc,
		&t.ReceiptNumber, &t.TransactionDate, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Status = mpesa.TransactionStatus(status)
	return &t, nil
}
