package mpesa

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for M-Pesa transactions.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Transaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Transaction, error)

	// ConditionalTransition atomically moves the transaction identified by
	// checkoutRequestID from pending to the terminal state in res. It
	// returns true when this call performed the transition, false when the
	// transaction was no longer pending (idempotent retry, or a concurrent
	// callback/status query won the race). Implemented as a single
	// conditional UPDATE, not as read-then-write.
	ConditionalTransition(ctx context.Context, checkoutRequestID string, res Result) (bool, error)

	// ListStalePending returns pending transactions older than cutoff, for
	// the background reconciler.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error)

	// RecordCallback stores a raw provider callback for audit and debugging.
	RecordCallback(ctx context.Context, cb *Callback) error
}

// Callback is a raw webhook delivery from the provider, kept verbatim.
type Callback struct {
	ID                uuid.UUID
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Payload           []byte
	ProcessingError   *string
	ReceivedAt        time.Time
}
