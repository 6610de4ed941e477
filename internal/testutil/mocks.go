package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/dmwangi/medsupply/internal/domain/cart"
	"github.com/dmwangi/medsupply/internal/domain/catalog"
	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/mpesa"
	"github.com/dmwangi/medsupply/internal/domain/order"
	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/dmwangi/medsupply/internal/infrastructure/daraja"
	"github.com/google/uuid"
)

// --- Mpesa Repository Mock ---

// MockMpesaRepository is an in-memory mpesa.Repository. The conditional
// transition takes the mutex for its whole read-check-write so concurrent
// callers observe the same winner-takes-all behavior the SQL UPDATE gives.
type MockMpesaRepository struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*mpesa.Transaction
	byCheckout   map[string]*mpesa.Transaction
	Callbacks    []*mpesa.Callback

	CreateFunc                func(ctx context.Context, t *mpesa.Transaction) error
	ConditionalTransitionFunc func(ctx context.Context, checkoutRequestID string, res mpesa.Result) (bool, error)
	RecordCallbackFunc        func(ctx context.Context, cb *mpesa.Callback) error
}

func NewMockMpesaRepository() *MockMpesaRepository {
	return &MockMpesaRepository{
		transactions: make(map[uuid.UUID]*mpesa.Transaction),
		byCheckout:   make(map[string]*mpesa.Transaction),
	}
}

func (m *MockMpesaRepository) Create(ctx context.Context, t *mpesa.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Store a copy: the row must not alias the caller's struct, same as a
	// real insert.
	cp := *t
	m.transactions[t.ID] = &cp
	m.byCheckout[t.CheckoutRequestID] = &cp
	return nil
}

func (m *MockMpesaRepository) GetByID(ctx context.Context, id uuid.UUID) (*mpesa.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockMpesaRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*mpesa.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byCheckout[checkoutRequestID]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockMpesaRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*mpesa.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*mpesa.Transaction
	for _, t := range m.transactions {
		if t.OrderID == orderID {
			cp := *t
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockMpesaRepository) ConditionalTransition(ctx context.Context, checkoutRequestID string, res mpesa.Result) (bool, error) {
	if m.ConditionalTransitionFunc != nil {
		return m.ConditionalTransitionFunc(ctx, checkoutRequestID, res)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byCheckout[checkoutRequestID]
	if !ok || t.Status != mpesa.StatusPending {
		return false, nil
	}
	now := time.Now()
	t.Status = res.Status
	t.ResultCode = &res.ResultCode
	t.ResultDesc = &res.ResultDesc
	t.ReceiptNumber = res.ReceiptNumber
	t.TransactionDate = res.PaidAt
	t.UpdatedAt = now
	t.CompletedAt = &now
	return true, nil
}

func (m *MockMpesaRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*mpesa.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*mpesa.Transaction
	for _, t := range m.transactions {
		if t.Status == mpesa.StatusPending && t.CreatedAt.Before(cutoff) {
			cp := *t
			result = append(result, &cp)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockMpesaRepository) RecordCallback(ctx context.Context, cb *mpesa.Callback) error {
	if m.RecordCallbackFunc != nil {
		return m.RecordCallbackFunc(ctx, cb)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Callbacks = append(m.Callbacks, cb)
	return nil
}

// --- Order Repository Mock ---

type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order

	MarkPaidFunc func(ctx context.Context, id uuid.UUID) (bool, error)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[uuid.UUID]*order.Order)}
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepository) List(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*order.Order
	for _, o := range m.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status order.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domainErrors.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != order.PaymentUnpaid {
		return false, nil
	}
	now := time.Now()
	o.PaymentStatus = order.PaymentPaid
	o.Status = order.StatusConfirmed
	o.PaidAt = &now
	o.UpdatedAt = now
	return true, nil
}

// --- User Repository Mock ---

type MockUserRepository struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*user.User
	byEmail map[string]*user.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:   make(map[uuid.UUID]*user.User),
		byEmail: make(map[string]*user.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		return domainErrors.ErrUserAlreadyExists
	}
	m.users[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, domainErrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) Update(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

// --- Catalog Repository Mock ---

type MockCatalogRepository struct {
	mu         sync.Mutex
	products   map[uuid.UUID]*catalog.Product
	categories map[uuid.UUID]*catalog.Category
}

func NewMockCatalogRepository() *MockCatalogRepository {
	return &MockCatalogRepository{
		products:   make(map[uuid.UUID]*catalog.Product),
		categories: make(map[uuid.UUID]*catalog.Category),
	}
}

func (m *MockCatalogRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *MockCatalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domainErrors.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalogRepository) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *MockCatalogRepository) ListProducts(ctx context.Context, f catalog.ListFilter) ([]*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*catalog.Product
	for _, p := range m.products {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockCatalogRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domainErrors.ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return domainErrors.ErrInsufficientStock
	}
	p.Stock += delta
	return nil
}

func (m *MockCatalogRepository) CreateCategory(ctx context.Context, c *catalog.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
	return nil
}

func (m *MockCatalogRepository) ListCategories(ctx context.Context) ([]*catalog.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*catalog.Category
	for _, c := range m.categories {
		cp := *c
		result = append(result, &cp)
	}
	return result, nil
}

// --- Cart Repository Mock ---

type MockCartRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]map[uuid.UUID]*cart.Item // userID -> productID -> item
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{items: make(map[uuid.UUID]map[uuid.UUID]*cart.Item)}
}

func (m *MockCartRepository) Upsert(ctx context.Context, item *cart.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[item.UserID] == nil {
		m.items[item.UserID] = make(map[uuid.UUID]*cart.Item)
	}
	m.items[item.UserID][item.ProductID] = item
	return nil
}

func (m *MockCartRepository) GetItems(ctx context.Context, userID uuid.UUID) ([]*cart.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*cart.Item
	for _, it := range m.items[userID] {
		cp := *it
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockCartRepository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[userID] == nil {
		return domainErrors.ErrCartItemNotFound
	}
	if _, ok := m.items[userID][productID]; !ok {
		return domainErrors.ErrCartItemNotFound
	}
	delete(m.items[userID], productID)
	return nil
}

func (m *MockCartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, userID)
	return nil
}

// --- Daraja API Mock ---

type MockDarajaAPI struct {
	mu sync.Mutex

	STKPushFunc     func(ctx context.Context, req daraja.STKPushRequest) (*daraja.STKPushResponse, error)
	QueryStatusFunc func(ctx context.Context, checkoutRequestID string) (*daraja.StatusResponse, error)

	STKPushCalls     int
	QueryStatusCalls int
}

func (m *MockDarajaAPI) STKPush(ctx context.Context, req daraja.STKPushRequest) (*daraja.STKPushResponse, error) {
	m.mu.Lock()
	m.STKPushCalls++
	m.mu.Unlock()
	if m.STKPushFunc != nil {
		return m.STKPushFunc(ctx, req)
	}
	return &daraja.STKPushResponse{
		MerchantRequestID: "mr-" + uuid.NewString(),
		CheckoutRequestID: "ws_CO_" + uuid.NewString(),
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (m *MockDarajaAPI) QueryStatus(ctx context.Context, checkoutRequestID string) (*daraja.StatusResponse, error) {
	m.mu.Lock()
	m.QueryStatusCalls++
	m.mu.Unlock()
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, checkoutRequestID)
	}
	return &daraja.StatusResponse{ResultCode: 0, ResultDesc: "The service request is processed successfully."}, nil
}

// --- Email Sender Mock ---

type MockEmailSender struct {
	mu            sync.Mutex
	Confirmations []string // order numbers
	Receipts      []string // order numbers
}

func (m *MockEmailSender) SendOrderConfirmation(ctx context.Context, to, name, orderNumber string, totalCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Confirmations = append(m.Confirmations, orderNumber)
	return nil
}

func (m *MockEmailSender) SendPaymentReceipt(ctx context.Context, to, name, orderNumber, receiptNumber string, amountCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Receipts = append(m.Receipts, orderNumber)
	return nil
}

// --- Token Blocklist Mock ---

type MockTokenBlocklist struct {
	mu      sync.Mutex
	revoked map[string]struct{}
}

func NewMockTokenBlocklist() *MockTokenBlocklist {
	return &MockTokenBlocklist{revoked: make(map[string]struct{})}
}

func (m *MockTokenBlocklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = struct{}{}
	return nil
}

func (m *MockTokenBlocklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

// --- Transaction Manager Mock ---

// MockTxManager runs the function directly. Repository mocks are not
// transactional, so tests exercise the orchestration order, not rollback.
type MockTxManager struct{}

func (m *MockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
