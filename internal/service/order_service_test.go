package service_test

import (
	"context"
	"testing"

	"github.com/dmwangi/medsupply/internal/domain/cart"
	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/order"
	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/dmwangi/medsupply/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	svc     *service.OrderService
	orders  *testutil.MockOrderRepository
	carts   *testutil.MockCartRepository
	catalog *testutil.MockCatalogRepository
	emails  *testutil.MockEmailSender
	user    *user.User
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	f := &orderFixture{
		orders:  testutil.NewMockOrderRepository(),
		carts:   testutil.NewMockCartRepository(),
		catalog: testutil.NewMockCatalogRepository(),
		emails:  &testutil.MockEmailSender{},
	}

	users := testutil.NewMockUserRepository()
	f.user = testutil.NewTestUser()
	require.NoError(t, users.Create(context.Background(), f.user))

	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	f.svc = service.NewOrderService(
		f.orders, f.carts, f.catalog, users, &testutil.MockTxManager{}, f.emails, zerolog.Nop(), metrics,
	)
	return f
}

func (f *orderFixture) stockProduct(t *testing.T, stock int) uuid.UUID {
	t.Helper()
	cat := testutil.NewTestCategory()
	require.NoError(t, f.catalog.CreateCategory(context.Background(), cat))
	p := testutil.NewTestProduct(cat.ID)
	p.Stock = stock
	require.NoError(t, f.catalog.CreateProduct(context.Background(), p))
	return p.ID
}

func (f *orderFixture) addToCart(t *testing.T, productID uuid.UUID, qty int) {
	t.Helper()
	item, err := cart.NewItem(f.user.ID, productID, qty)
	require.NoError(t, err)
	require.NoError(t, f.carts.Upsert(context.Background(), item))
}

func TestCreateFromCart_SnapshotsPricesAndClearsCart(t *testing.T) {
	f := newOrderFixture(t)
	productID := f.stockProduct(t, 10)
	f.addToCart(t, productID, 3)

	o, err := f.svc.CreateFromCart(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentUnpaid, o.PaymentStatus)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(125000), o.Items[0].PriceCents)
	assert.Equal(t, int64(375000), o.TotalCents)

	p, err := f.catalog.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)

	items, err := f.carts.GetItems(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.Len(t, f.emails.Confirmations, 1)
}

func TestCreateFromCart_EmptyCart(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.CreateFromCart(context.Background(), f.user.ID)
	assert.ErrorIs(t, err, domainErrors.ErrCartEmpty)
}

func TestCreateFromCart_InsufficientStock(t *testing.T) {
	f := newOrderFixture(t)
	productID := f.stockProduct(t, 2)
	f.addToCart(t, productID, 5)

	_, err := f.svc.CreateFromCart(context.Background(), f.user.ID)
	assert.ErrorIs(t, err, domainErrors.ErrInsufficientStock)

	// The cart survives a failed checkout.
	items, err := f.carts.GetItems(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCreateFromCart_InactiveProduct(t *testing.T) {
	f := newOrderFixture(t)
	productID := f.stockProduct(t, 10)
	p, err := f.catalog.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	p.IsActive = false
	require.NoError(t, f.catalog.UpdateProduct(context.Background(), p))
	f.addToCart(t, productID, 1)

	_, err = f.svc.CreateFromCart(context.Background(), f.user.ID)
	assert.ErrorIs(t, err, domainErrors.ErrProductInactive)
}

func TestGet_OwnershipAndAdminBypass(t *testing.T) {
	f := newOrderFixture(t)
	o := testutil.NewTestOrder(f.user.ID)
	require.NoError(t, f.orders.Create(context.Background(), o))

	got, err := f.svc.Get(context.Background(), f.user.ID, false, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.Get(context.Background(), uuid.New(), false, o.ID)
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)

	_, err = f.svc.Get(context.Background(), uuid.New(), true, o.ID)
	assert.NoError(t, err)
}

func TestCancel_RestocksLines(t *testing.T) {
	f := newOrderFixture(t)
	productID := f.stockProduct(t, 10)
	f.addToCart(t, productID, 4)

	o, err := f.svc.CreateFromCart(context.Background(), f.user.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), f.user.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)

	p, err := f.catalog.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
}

func TestCancel_PaidOrderRejected(t *testing.T) {
	f := newOrderFixture(t)
	o := testutil.NewTestOrder(f.user.ID)
	require.NoError(t, f.orders.Create(context.Background(), o))
	flipped, err := f.orders.MarkPaid(context.Background(), o.ID)
	require.NoError(t, err)
	require.True(t, flipped)

	_, err = f.svc.Cancel(context.Background(), f.user.ID, o.ID)
	assert.ErrorIs(t, err, domainErrors.ErrOrderNotCancelable)
}

func TestCancel_OtherUsersOrder(t *testing.T) {
	f := newOrderFixture(t)
	o := testutil.NewTestOrder(f.user.ID)
	require.NoError(t, f.orders.Create(context.Background(), o))

	_, err := f.svc.Cancel(context.Background(), uuid.New(), o.ID)
	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
}

func TestUpdateStatus_EnforcesFlow(t *testing.T) {
	f := newOrderFixture(t)
	o := testutil.NewTestOrder(f.user.ID)
	require.NoError(t, f.orders.Create(context.Background(), o))

	got, err := f.svc.UpdateStatus(context.Background(), o.ID, order.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)

	_, err = f.svc.UpdateStatus(context.Background(), o.ID, order.StatusDelivered)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
}

func TestList_DefaultsLimit(t *testing.T) {
	f := newOrderFixture(t)
	o := testutil.NewTestOrder(f.user.ID)
	require.NoError(t, f.orders.Create(context.Background(), o))

	got, err := f.svc.List(context.Background(), f.user.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
