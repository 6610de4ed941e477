package mpesa

import (
	"regexp"
	"strings"
	"time"

	"github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/google/uuid"
)

// TransactionStatus represents the transaction status in the state machine.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Transaction is one initiated STK push request. It is created in pending
// state when initiation succeeds, resolved to exactly one terminal state by
// either the provider callback or an explicit status query, and never
// deleted (financial audit record).
type Transaction struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	CheckoutRequestID string
	MerchantRequestID string
	PhoneNumber       string
	AmountCents       int64
	AccountReference  string
	Status            TransactionStatus
	ResultCode        *int
	ResultDesc        *string
	ReceiptNumber     *string
	TransactionDate   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// NewTransaction creates a pending transaction for a successful STK push.
func NewTransaction(orderID uuid.UUID, checkoutRequestID, merchantRequestID, phone string, amountCents int64, accountRef string) (*Transaction, error) {
	if checkoutRequestID == "" {
		return nil, errors.NewValidationError("checkout_request_id", "cannot be empty")
	}
	if amountCents <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	now := time.Now()
	return &Transaction{
		ID:                uuid.New(),
		OrderID:           orderID,
		CheckoutRequestID: checkoutRequestID,
		MerchantRequestID: merchantRequestID,
		PhoneNumber:       phone,
		AmountCents:       amountCents,
		AccountReference:  accountRef,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsTerminal reports whether the transaction has reached an absorbing state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed || t.Status == StatusCancelled
}

// CanTransitionTo checks the state machine guard: the only legal transitions
// are pending -> completed | failed | cancelled.
func (t *Transaction) CanTransitionTo(newStatus TransactionStatus) bool {
	if t.Status != StatusPending {
		return false
	}
	switch newStatus {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TransitionTo transitions the transaction to a terminal status.
func (t *Transaction) TransitionTo(newStatus TransactionStatus) error {
	if !t.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(t.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	now := time.Now()
	t.Status = newStatus
	t.UpdatedAt = now
	t.CompletedAt = &now
	return nil
}

// Result carries the provider's verdict for a terminal transition.
type Result struct {
	Status        TransactionStatus
	ResultCode    int
	ResultDesc    string
	ReceiptNumber *string
	PaidAt        *time.Time
}

// Daraja STK push result codes. 0 is success, 1032 is a user cancel on the
// handset, the remainder are documented failure codes. Anything outside
// this table is treated as unrecognized, not as failed.
const (
	CodeSuccess            = 0
	CodeInsufficientFunds  = 1
	CodeUnableToLock       = 1001
	CodeTransactionExpired = 1019
	CodeInvalidInitiator   = 1025
	CodeUserCancelled      = 1032
	CodeTimeout            = 1037
	CodeInvalidRequest     = 2001
)

var failureCodes = map[int]struct{}{
	CodeInsufficientFunds:  {},
	CodeUnableToLock:       {},
	CodeTransactionExpired: {},
	CodeInvalidInitiator:   {},
	CodeTimeout:            {},
	CodeInvalidRequest:     {},
}

// MapResultCode maps a provider result code to a terminal status. The
// second return is false for unrecognized codes, which callers must treat
// as an upstream error rather than silently defaulting to failed.
func MapResultCode(code int) (TransactionStatus, bool) {
	switch {
	case code == CodeSuccess:
		return StatusCompleted, true
	case code == CodeUserCancelled:
		return StatusCancelled, true
	default:
		if _, ok := failureCodes[code]; ok {
			return StatusFailed, true
		}
		return "", false
	}
}

var phonePattern = regexp.MustCompile(`^254(7|1)\d{8}$`)

// NormalizePhone converts the accepted local formats to the provider's
// international form (2547XXXXXXXX / 2541XXXXXXXX).
func NormalizePhone(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "07") || strings.HasPrefix(p, "01") {
		p = "254" + p[1:]
	}
	if !phonePattern.MatchString(p) {
		return "", errors.NewValidationError("phone_number", "must be a valid Kenyan mobile number")
	}
	return p, nil
}
