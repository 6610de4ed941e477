package controller

import (
	"time"

	"github.com/dmwangi/medsupply/internal/domain/catalog"
	"github.com/dmwangi/medsupply/internal/domain/mpesa"
	"github.com/dmwangi/medsupply/internal/domain/order"
	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/dmwangi/medsupply/internal/service"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (float64 for money, string for IDs,
// validation tags). Controllers convert these to service layer DTOs before
// calling business logic.

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Slug        string `json:"slug" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type CreateProductRequest struct {
	CategoryID  string  `json:"category_id" validate:"required,uuid"`
	Name        string  `json:"name" validate:"required,max=200"`
	Slug        string  `json:"slug" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

type UpdateProductRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	Stock       *int     `json:"stock,omitempty" validate:"omitempty,gte=0"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=100"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed processing shipped delivered cancelled"`
}

type STKPushRequest struct {
	OrderID     string `json:"order_id" validate:"required,uuid"`
	PhoneNumber string `json:"phone_number" validate:"required,max=20"`
}

// --- Response DTOs ---

type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LoginResponse struct {
	User   *UserResponse  `json:"user"`
	Tokens *TokenResponse `json:"tokens"`
}

type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type ProductResponse struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CartItemResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type CartResponse struct {
	Items []*CartItemResponse `json:"items"`
	Total float64             `json:"total"`
}

type OrderItemResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type OrderResponse struct {
	ID            string               `json:"id"`
	OrderNumber   string               `json:"order_number"`
	Status        string               `json:"status"`
	PaymentStatus string               `json:"payment_status"`
	Total         float64              `json:"total"`
	Items         []*OrderItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
}

type TransactionResponse struct {
	ID                string     `json:"id"`
	OrderID           string     `json:"order_id"`
	CheckoutRequestID string     `json:"checkout_request_id"`
	PhoneNumber       string     `json:"phone_number"`
	Amount            float64    `json:"amount"`
	Status            string     `json:"status"`
	ResultCode        *int       `json:"result_code,omitempty"`
	ResultDesc        *string    `json:"result_desc,omitempty"`
	ReceiptNumber     *string    `json:"receipt_number,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CallbackAck is the body Daraja expects back from the webhook. Always
// ResultCode 0: a non-zero or non-200 response only makes the provider
// retry, and a retry cannot fix anything on our side.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// --- Conversion helpers ---

func FromUser(u *user.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func FromTokenPair(p *service.TokenPair) *TokenResponse {
	return &TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    p.ExpiresIn,
	}
}

func FromCategory(c *catalog.Category) *CategoryResponse {
	return &CategoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
	}
}

func FromProduct(p *catalog.Product) *ProductResponse {
	return &ProductResponse{
		ID:          p.ID.String(),
		CategoryID:  p.CategoryID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       centsToFloat(p.PriceCents),
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func FromCartLine(l *service.CartLine) *CartItemResponse {
	return &CartItemResponse{
		ProductID: l.Product.ID.String(),
		Name:      l.Product.Name,
		Price:     centsToFloat(l.Product.PriceCents),
		Quantity:  l.Item.Quantity,
		Subtotal:  centsToFloat(l.Product.PriceCents * int64(l.Item.Quantity)),
	}
}

func FromOrder(o *order.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:            o.ID.String(),
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Total:         centsToFloat(o.TotalCents),
		CreatedAt:     o.CreatedAt,
		PaidAt:        o.PaidAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, &OrderItemResponse{
			ProductID: it.ProductID.String(),
			Name:      it.Name,
			Price:     centsToFloat(it.PriceCents),
			Quantity:  it.Quantity,
		})
	}
	return resp
}

func FromTransaction(t *mpesa.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                t.ID.String(),
		OrderID:           t.OrderID.String(),
		CheckoutRequestID: t.CheckoutRequestID,
		PhoneNumber:       t.PhoneNumber,
		Amount:            centsToFloat(t.AmountCents),
		Status:            string(t.Status),
		ResultCode:        t.ResultCode,
		ResultDesc:        t.ResultDesc,
		ReceiptNumber:     t.ReceiptNumber,
		CreatedAt:         t.CreatedAt,
		CompletedAt:       t.CompletedAt,
	}
}

// floatToCents converts a float KES amount to cents.
func floatToCents(f float64) int64 {
	return int64(f*100 + 0.5)
}

// centsToFloat converts cents to a float KES amount.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100.0
}
