package order_test

import (
	"strings"
	"testing"

	"github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/order"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []*order.Item {
	return []*order.Item{
		{ID: uuid.New(), ProductID: uuid.New(), Name: "Pulse Oximeter", PriceCents: 350000, Quantity: 2},
		{ID: uuid.New(), ProductID: uuid.New(), Name: "Nitrile Gloves", PriceCents: 95000, Quantity: 1},
	}
}

func TestNew_Valid(t *testing.T) {
	userID := uuid.New()
	o, err := order.New(userID, testItems())
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, int64(795000), o.TotalCents)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "ORD-"))
	for _, it := range o.Items {
		assert.Equal(t, o.ID, it.OrderID)
	}
}

func TestNew_EmptyItems(t *testing.T) {
	_, err := order.New(uuid.New(), nil)
	assert.ErrorIs(t, err, errors.ErrCartEmpty)
}

func TestNew_NonPositiveQuantity(t *testing.T) {
	items := testItems()
	items[0].Quantity = 0
	_, err := order.New(uuid.New(), items)
	assert.Error(t, err)
}

func TestCanCancel(t *testing.T) {
	o, err := order.New(uuid.New(), testItems())
	require.NoError(t, err)
	assert.True(t, o.CanCancel())

	o.Status = order.StatusConfirmed
	assert.True(t, o.CanCancel())

	o.Status = order.StatusProcessing
	assert.False(t, o.CanCancel())

	o.Status = order.StatusConfirmed
	o.PaymentStatus = order.PaymentPaid
	assert.False(t, o.CanCancel())
}

func TestTransitionTo_Flow(t *testing.T) {
	o, err := order.New(uuid.New(), testItems())
	require.NoError(t, err)

	require.NoError(t, o.TransitionTo(order.StatusConfirmed))
	require.NoError(t, o.TransitionTo(order.StatusProcessing))
	require.NoError(t, o.TransitionTo(order.StatusShipped))
	require.NoError(t, o.TransitionTo(order.StatusDelivered))

	assert.ErrorIs(t, o.TransitionTo(order.StatusCancelled), errors.ErrInvalidStateTransition)
}

func TestTransitionTo_NoSkippingStates(t *testing.T) {
	o, err := order.New(uuid.New(), testItems())
	require.NoError(t, err)
	assert.ErrorIs(t, o.TransitionTo(order.StatusShipped), errors.ErrInvalidStateTransition)
}

func TestTransitionTo_CancelledIsTerminal(t *testing.T) {
	o, err := order.New(uuid.New(), testItems())
	require.NoError(t, err)
	require.NoError(t, o.TransitionTo(order.StatusCancelled))
	assert.ErrorIs(t, o.TransitionTo(order.StatusConfirmed), errors.ErrInvalidStateTransition)
}
