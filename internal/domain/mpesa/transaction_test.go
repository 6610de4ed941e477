package mpesa_test

import (
	"testing"

	"github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/mpesa"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction_Valid(t *testing.T) {
	orderID := uuid.New()
	tx, err := mpesa.NewTransaction(orderID, "ws_CO_123", "mr-1", "254712345678", 250000, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, mpesa.StatusPending, tx.Status)
	assert.Equal(t, orderID, tx.OrderID)
	assert.Equal(t, int64(250000), tx.AmountCents)
	assert.Nil(t, tx.ResultCode)
	assert.Nil(t, tx.CompletedAt)
}

func TestNewTransaction_EmptyCheckoutRequestID(t *testing.T) {
	_, err := mpesa.NewTransaction(uuid.New(), "", "mr-1", "254712345678", 250000, "ORD-1")
	assert.Error(t, err)
}

func TestNewTransaction_NonPositiveAmount(t *testing.T) {
	_, err := mpesa.NewTransaction(uuid.New(), "ws_CO_123", "mr-1", "254712345678", 0, "ORD-1")
	assert.Error(t, err)
}

func TestTransitionTo_PendingToTerminal(t *testing.T) {
	for _, target := range []mpesa.TransactionStatus{
		mpesa.StatusCompleted,
		mpesa.StatusFailed,
		mpesa.StatusCancelled,
	} {
		tx, err := mpesa.NewTransaction(uuid.New(), "ws_CO_123", "mr-1", "254712345678", 100, "ORD-1")
		require.NoError(t, err)
		require.NoError(t, tx.TransitionTo(target))
		assert.Equal(t, target, tx.Status)
		assert.True(t, tx.IsTerminal())
		assert.NotNil(t, tx.CompletedAt)
	}
}

func TestTransitionTo_TerminalIsAbsorbing(t *testing.T) {
	tx, err := mpesa.NewTransaction(uuid.New(), "ws_CO_123", "mr-1", "254712345678", 100, "ORD-1")
	require.NoError(t, err)
	require.NoError(t, tx.TransitionTo(mpesa.StatusCompleted))

	for _, target := range []mpesa.TransactionStatus{
		mpesa.StatusCompleted,
		mpesa.StatusFailed,
		mpesa.StatusCancelled,
		mpesa.StatusPending,
	} {
		err := tx.TransitionTo(target)
		assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
		assert.Equal(t, mpesa.StatusCompleted, tx.Status)
	}
}

func TestTransitionTo_PendingIsNotATarget(t *testing.T) {
	tx, err := mpesa.NewTransaction(uuid.New(), "ws_CO_123", "mr-1", "254712345678", 100, "ORD-1")
	require.NoError(t, err)
	assert.ErrorIs(t, tx.TransitionTo(mpesa.StatusPending), errors.ErrInvalidStateTransition)
}

func TestMapResultCode(t *testing.T) {
	tests := []struct {
		code   int
		status mpesa.TransactionStatus
		known  bool
	}{
		{mpesa.CodeSuccess, mpesa.StatusCompleted, true},
		{mpesa.CodeUserCancelled, mpesa.StatusCancelled, true},
		{mpesa.CodeInsufficientFunds, mpesa.StatusFailed, true},
		{mpesa.CodeUnableToLock, mpesa.StatusFailed, true},
		{mpesa.CodeTransactionExpired, mpesa.StatusFailed, true},
		{mpesa.CodeInvalidInitiator, mpesa.StatusFailed, true},
		{mpesa.CodeTimeout, mpesa.StatusFailed, true},
		{mpesa.CodeInvalidRequest, mpesa.StatusFailed, true},
		{9999, "", false},
		{-1, "", false},
		{2, "", false},
	}
	for _, tc := range tests {
		status, ok := mpesa.MapResultCode(tc.code)
		assert.Equal(t, tc.known, ok, "code %d", tc.code)
		assert.Equal(t, tc.status, status, "code %d", tc.code)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"254712345678", "254712345678", false},
		{"+254712345678", "254712345678", false},
		{"0712345678", "254712345678", false},
		{"0112345678", "254112345678", false},
		{" 0712 345 678 ", "254712345678", false},
		{"0812345678", "", true},
		{"71234567", "", true},
		{"2547123456789", "", true},
		{"not-a-phone", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := mpesa.NormalizePhone(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
