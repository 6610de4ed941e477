package service

import "context"

// TransactionManager wraps multi-repository writes in one database
// transaction. Checkout depends on it: order insert, stock decrement and
// cart clear must land together or not at all, and cancellation needs the
// same atomicity for the restock.
type TransactionManager interface {
	// WithTransaction runs fn inside a transaction, committing when fn
	// returns nil and rolling back otherwise. Repository calls made with
	// the ctx passed to fn join the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
