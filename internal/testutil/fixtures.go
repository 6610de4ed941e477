package testutil

import (
	"time"

	"github.com/dmwangi/medsupply/internal/domain/catalog"
	"github.com/dmwangi/medsupply/internal/domain/mpesa"
	"github.com/dmwangi/medsupply/internal/domain/order"
	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/google/uuid"
)

// NewTestUser returns an active customer with a placeholder bcrypt hash.
func NewTestUser() *user.User {
	now := time.Now()
	return &user.User{
		ID:           uuid.New(),
		Email:        "jane.wanjiru@example.com",
		FirstName:    "Jane",
		LastName:     "Wanjiru",
		PhoneNumber:  "254712345678",
		PasswordHash: "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW",
		Role:         user.RoleCustomer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func NewTestProduct(categoryID uuid.UUID) *catalog.Product {
	now := time.Now()
	return &catalog.Product{
		ID:          uuid.New(),
		CategoryID:  categoryID,
		Name:        "Digital Thermometer",
		Slug:        "digital-thermometer",
		Description: "Fast-read digital thermometer",
		PriceCents:  125000,
		Stock:       50,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewTestCategory() *catalog.Category {
	return &catalog.Category{
		ID:          uuid.New(),
		Name:        "Diagnostics",
		Slug:        "diagnostics",
		Description: "Diagnostic equipment",
		CreatedAt:   time.Now(),
	}
}

// NewTestOrder returns an unpaid pending order for the given user with a
// single line totalling 2500.00 KES.
func NewTestOrder(userID uuid.UUID) *order.Order {
	now := time.Now()
	orderID := uuid.New()
	return &order.Order{
		ID:            orderID,
		UserID:        userID,
		OrderNumber:   "ORD-20260115-A1B2C3",
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentUnpaid,
		TotalCents:    250000,
		Items: []*order.Item{
			{
				ID:         uuid.New(),
				OrderID:    orderID,
				ProductID:  uuid.New(),
				Name:       "Digital Thermometer",
				PriceCents: 125000,
				Quantity:   2,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestTransaction returns a pending STK push transaction tied to orderID.
func NewTestTransaction(orderID uuid.UUID) *mpesa.Transaction {
	now := time.Now()
	return &mpesa.Transaction{
		ID:                uuid.New(),
		OrderID:           orderID,
		CheckoutRequestID: "ws_CO_" + uuid.NewString(),
		MerchantRequestID: "mr-" + uuid.NewString(),
		PhoneNumber:       "254712345678",
		AmountCents:       250000,
		AccountReference:  "ORD-20260115-A1B2C3",
		Status:            mpesa.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
