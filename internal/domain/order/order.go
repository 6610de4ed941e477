package order

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/google/uuid"
)

// OrderStatus represents the fulfilment status of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is the payment side of an order's lifecycle. unpaid -> paid
// happens exactly once, as a side effect of a completed M-Pesa transaction.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type Order struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	OrderNumber   string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	TotalCents    int64
	Items         []*Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
}

// Item is a price-snapshotted order line.
type Item struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	ProductID  uuid.UUID
	Name       string
	PriceCents int64
	Quantity   int
}

func New(userID uuid.UUID, items []*Item) (*Order, error) {
	if len(items) == 0 {
		return nil, errors.ErrCartEmpty
	}

	var total int64
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, errors.NewValidationError("quantity", "must be greater than 0")
		}
		total += it.PriceCents * int64(it.Quantity)
	}

	now := time.Now()
	o := &Order{
		ID:            uuid.New(),
		UserID:        userID,
		OrderNumber:   newOrderNumber(),
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		TotalCents:    total,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, it := range o.Items {
		it.OrderID = o.ID
	}
	return o, nil
}

// CanCancel reports whether the customer may still cancel: only unpaid
// orders that have not entered fulfilment.
func (o *Order) CanCancel() bool {
	return o.PaymentStatus == PaymentUnpaid &&
		(o.Status == StatusPending || o.Status == StatusConfirmed)
}

var statusFlow = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransitionTo checks the fulfilment state machine.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusFlow[o.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (o *Order) TransitionTo(next OrderStatus) error {
	if !o.CanTransitionTo(next) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition order from "+string(o.Status)+" to "+string(next),
			errors.ErrInvalidStateTransition,
		)
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	return nil
}

func newOrderNumber() string {
	b := make([]byte, 4)
	rand.Read(b)
	return "ORD-" + strings.ToUpper(hex.EncodeToString(b))
}
