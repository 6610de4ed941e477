package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/mpesa"
	"github.com/dmwangi/medsupply/internal/domain/order"
	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	"github.com/dmwangi/medsupply/internal/infrastructure/daraja"
	"github.com/dmwangi/medsupply/internal/infrastructure/email"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentService orchestrates the M-Pesa payment flow: STK push initiation,
// callback processing, and status reconciliation. Callbacks and status
// queries converge on one transition path so a transaction resolves to
// exactly one terminal state no matter which signal arrives first.
type PaymentService struct {
	txRepo    mpesa.Repository
	orderRepo order.Repository
	userRepo  user.Repository
	daraja    daraja.API
	cfg       *config.MpesaConfig
	emails    email.Sender
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewPaymentService(
	txRepo mpesa.Repository,
	orderRepo order.Repository,
	userRepo user.Repository,
	darajaAPI daraja.API,
	cfg *config.MpesaConfig,
	emails email.Sender,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *PaymentService {
	return &PaymentService{
		txRepo:    txRepo,
		orderRepo: orderRepo,
		userRepo:  userRepo,
		daraja:    darajaAPI,
		cfg:       cfg,
		emails:    emails,
		logger:    logger,
		metrics:   metrics,
	}
}

// InitiateSTKPushRequest holds the input for starting a payment.
// Controllers convert their HTTP DTOs to this type.
type InitiateSTKPushRequest struct {
	UserID      uuid.UUID
	OrderID     uuid.UUID
	PhoneNumber string
}

// InitiateSTKPush validates the request, asks Daraja to prompt the payer's
// handset, and persists a pending transaction. All validation happens before
// any network call: a rejected request must leave no transaction row behind.
func (s *PaymentService) InitiateSTKPush(ctx context.Context, req InitiateSTKPushRequest) (*mpesa.Transaction, error) {
	o, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != req.UserID {
		return nil, domainErrors.ErrForbidden
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, domainErrors.ErrOrderAlreadyPaid
	}
	if o.Status == order.StatusCancelled {
		return nil, domainErrors.NewValidationError("order", "order has been cancelled")
	}
	if o.TotalCents < s.cfg.MinAmountCents || o.TotalCents > s.cfg.MaxAmountCents {
		return nil, domainErrors.NewValidationError("amount", fmt.Sprintf(
			"order total must be between %d and %d cents", s.cfg.MinAmountCents, s.cfg.MaxAmountCents))
	}

	phone, err := mpesa.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	// Reuse an existing pending push for this order instead of prompting the
	// handset twice.
	existing, err := s.txRepo.ListByOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		if t.Status == mpesa.StatusPending {
			return t, nil
		}
	}

	// Daraja takes whole KES. Round up so the push always covers the total.
	amount := (o.TotalCents + 99) / 100

	start := time.Now()
	resp, err := s.daraja.STKPush(ctx, daraja.STKPushRequest{
		Amount:           amount,
		PhoneNumber:      phone,
		AccountReference: o.OrderNumber,
		Description:      "MedSupply order " + o.OrderNumber,
	})
	s.metrics.DarajaRequestDuration.WithLabelValues("stkpush", outcomeLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.STKPushTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).
			Str("order_id", o.ID.String()).
			Msg("STK push initiation failed")
		return nil, err
	}

	t, err := mpesa.NewTransaction(o.ID, resp.CheckoutRequestID, resp.MerchantRequestID, phone, o.TotalCents, o.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := s.txRepo.Create(ctx, t); err != nil {
		// The push went out but we lost the row. The reconciler cannot find
		// it either, so surface loudly.
		s.logger.Error().Err(err).
			Str("checkout_request_id", resp.CheckoutRequestID).
			Str("order_id", o.ID.String()).
			Msg("Failed to persist initiated transaction")
		return nil, err
	}

	s.metrics.STKPushTotal.WithLabelValues("success").Inc()
	s.metrics.PendingTransactions.Inc()
	s.logger.Info().
		Str("transaction_id", t.ID.String()).
		Str("checkout_request_id", t.CheckoutRequestID).
		Str("order_id", o.ID.String()).
		Int64("amount_cents", t.AmountCents).
		Msg("STK push initiated")

	return t, nil
}

// ProcessCallback handles a provider webhook delivery. The raw payload is
// always recorded for audit, and the returned error is for the caller's log
// only: the HTTP layer acknowledges the provider regardless, since Daraja
// retries non-200 responses and a retry cannot fix a conflict on our side.
func (s *PaymentService) ProcessCallback(ctx context.Context, payload []byte) error {
	data, err := daraja.ParseCallback(payload)
	if err != nil {
		s.metrics.CallbacksTotal.WithLabelValues("malformed").Inc()
		s.recordCallback(ctx, &mpesa.Callback{
			ID:         uuid.New(),
			ResultCode: -1,
			Payload:    payload,
			ReceivedAt: time.Now(),
		}, err)
		return fmt.Errorf("parse callback: %w", err)
	}

	cb := &mpesa.Callback{
		ID:                uuid.New(),
		MerchantRequestID: data.MerchantRequestID,
		CheckoutRequestID: data.CheckoutRequestID,
		ResultCode:        data.ResultCode,
		ResultDesc:        data.ResultDesc,
		Payload:           payload,
		ReceivedAt:        time.Now(),
	}

	s.verifyCallbackMetadata(ctx, data)

	procErr := s.applyResult(ctx, data.CheckoutRequestID, data.ResultCode, data.ResultDesc, data.ReceiptNumber, data.TransactionDate)
	s.recordCallback(ctx, cb, procErr)

	switch {
	case procErr == nil:
		s.metrics.CallbacksTotal.WithLabelValues("processed").Inc()
	case errors.Is(procErr, domainErrors.ErrReconciliationConflict):
		s.metrics.CallbacksTotal.WithLabelValues("conflict").Inc()
	default:
		s.metrics.CallbacksTotal.WithLabelValues("error").Inc()
	}
	return procErr
}

// GetTransaction returns the transaction, reconciling against the provider
// first when it is still pending. Terminal transactions never trigger a
// network call. The ref is either the internal UUID or the provider's
// CheckoutRequestID, whichever the caller holds.
func (s *PaymentService) GetTransaction(ctx context.Context, userID uuid.UUID, ref string) (*mpesa.Transaction, error) {
	t, err := s.lookupTransaction(ctx, ref)
	if err != nil {
		return nil, err
	}

	o, err := s.orderRepo.GetByID(ctx, t.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}

	if t.IsTerminal() {
		return t, nil
	}

	if err := s.Reconcile(ctx, t); err != nil {
		// Best effort: the provider may still be processing. The stored
		// pending state is the honest answer.
		s.logger.Warn().Err(err).
			Str("checkout_request_id", t.CheckoutRequestID).
			Msg("On-demand reconciliation did not resolve transaction")
		return t, nil
	}

	return s.txRepo.GetByID(ctx, t.ID)
}

func (s *PaymentService) lookupTransaction(ctx context.Context, ref string) (*mpesa.Transaction, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.txRepo.GetByID(ctx, id)
	}
	return s.txRepo.GetByCheckoutRequestID(ctx, ref)
}

// ListOrderTransactions returns the payment attempts linked to an order.
func (s *PaymentService) ListOrderTransactions(ctx context.Context, userID, orderID uuid.UUID) ([]*mpesa.Transaction, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}
	return s.txRepo.ListByOrder(ctx, orderID)
}

// Reconcile queries the provider for a pending transaction's result and
// applies it through the same transition path callbacks use. Called by the
// background reconciler and by on-demand status reads.
func (s *PaymentService) Reconcile(ctx context.Context, t *mpesa.Transaction) error {
	if t.IsTerminal() {
		return nil
	}

	start := time.Now()
	status, err := s.daraja.QueryStatus(ctx, t.CheckoutRequestID)
	s.metrics.DarajaRequestDuration.WithLabelValues("stkpushquery", outcomeLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
		return err
	}

	err = s.applyResult(ctx, t.CheckoutRequestID, status.ResultCode, status.ResultDesc, nil, nil)
	switch {
	case err == nil:
		s.metrics.ReconciliationsTotal.WithLabelValues("resolved").Inc()
	case errors.Is(err, domainErrors.ErrReconciliationConflict):
		s.metrics.ReconciliationsTotal.WithLabelValues("conflict").Inc()
	default:
		s.metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
	}
	return err
}

// applyResult is the single transition path shared by callbacks and status
// queries. The conditional update in the repository guarantees exactly one
// caller wins when both race; the loser observes a conflict, not a second
// transition.
func (s *PaymentService) applyResult(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string, receiptNumber *string, paidAt *time.Time) error {
	newStatus, ok := mpesa.MapResultCode(resultCode)
	if !ok {
		// An unrecognized code is an upstream anomaly, not a failed payment.
		// Leave the transaction pending for the reconciler to retry.
		s.logger.Error().
			Int("result_code", resultCode).
			Str("result_desc", resultDesc).
			Str("checkout_request_id", checkoutRequestID).
			Msg("Unrecognized provider result code")
		return fmt.Errorf("%w: unrecognized result code %d", domainErrors.ErrUpstreamRequest, resultCode)
	}

	applied, err := s.txRepo.ConditionalTransition(ctx, checkoutRequestID, mpesa.Result{
		Status:        newStatus,
		ResultCode:    resultCode,
		ResultDesc:    resultDesc,
		ReceiptNumber: receiptNumber,
		PaidAt:        paidAt,
	})
	if err != nil {
		return fmt.Errorf("transition transaction: %w", err)
	}

	if !applied {
		t, getErr := s.txRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
		if getErr != nil {
			if errors.Is(getErr, domainErrors.ErrTransactionNotFound) {
				s.metrics.ReconcileConflicts.Inc()
				s.logger.Warn().
					Str("checkout_request_id", checkoutRequestID).
					Msg("Result references unknown transaction")
				return fmt.Errorf("%w: unknown checkout request %s", domainErrors.ErrReconciliationConflict, checkoutRequestID)
			}
			return getErr
		}
		if t.Status == newStatus {
			// Duplicate delivery of the same result. Idempotent no-op.
			s.logger.Debug().
				Str("checkout_request_id", checkoutRequestID).
				Str("status", string(t.Status)).
				Msg("Duplicate result for resolved transaction")
			return nil
		}
		s.metrics.ReconcileConflicts.Inc()
		s.logger.Warn().
			Str("checkout_request_id", checkoutRequestID).
			Str("stored_status", string(t.Status)).
			Str("incoming_status", string(newStatus)).
			Msg("Result conflicts with already-resolved transaction")
		return fmt.Errorf("%w: transaction already %s", domainErrors.ErrReconciliationConflict, t.Status)
	}

	s.metrics.PendingTransactions.Dec()
	s.logger.Info().
		Str("checkout_request_id", checkoutRequestID).
		Str("status", string(newStatus)).
		Int("result_code", resultCode).
		Msg("Transaction resolved")

	if newStatus == mpesa.StatusCompleted {
		s.settleOrder(ctx, checkoutRequestID)
	}
	return nil
}

// settleOrder marks the linked order paid after a completed transaction.
// MarkPaid is conditional on the order still being unpaid, so a duplicate
// settle attempt is harmless.
func (s *PaymentService) settleOrder(ctx context.Context, checkoutRequestID string) {
	t, err := s.txRepo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("checkout_request_id", checkoutRequestID).
			Msg("Completed transaction vanished before order settlement")
		return
	}

	flipped, err := s.orderRepo.MarkPaid(ctx, t.OrderID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("order_id", t.OrderID.String()).
			Msg("Failed to mark order paid")
		return
	}
	if !flipped {
		s.logger.Debug().
			Str("order_id", t.OrderID.String()).
			Msg("Order already paid")
		return
	}

	s.metrics.OrdersPaidTotal.Inc()
	s.logger.Info().
		Str("order_id", t.OrderID.String()).
		Str("checkout_request_id", checkoutRequestID).
		Msg("Order marked paid")

	s.sendReceipt(ctx, t)
}

// sendReceipt emails the payer. Email failure never affects the payment.
func (s *PaymentService) sendReceipt(ctx context.Context, t *mpesa.Transaction) {
	o, err := s.orderRepo.GetByID(ctx, t.OrderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", t.OrderID.String()).Msg("Skipping receipt email")
		return
	}
	u, err := s.userRepo.GetByID(ctx, o.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", o.UserID.String()).Msg("Skipping receipt email")
		return
	}

	receipt := ""
	if t.ReceiptNumber != nil {
		receipt = *t.ReceiptNumber
	}
	if err := s.emails.SendPaymentReceipt(ctx, u.Email, u.FullName(), o.OrderNumber, receipt, t.AmountCents); err != nil {
		s.logger.Warn().Err(err).Str("order_id", o.ID.String()).Msg("Receipt email failed")
	}
}

// verifyCallbackMetadata cross-checks the amount and payer the provider
// reports against what was pushed. A mismatch never blocks resolution, the
// provider's result stands, but it is flagged for operators.
func (s *PaymentService) verifyCallbackMetadata(ctx context.Context, data *daraja.CallbackData) {
	if data.AmountCents == nil && data.PhoneNumber == nil {
		return
	}
	t, err := s.txRepo.GetByCheckoutRequestID(ctx, data.CheckoutRequestID)
	if err != nil {
		return
	}

	// The push rounds the total up to whole KES, so compare against that.
	chargedCents := (t.AmountCents + 99) / 100 * 100
	if data.AmountCents != nil && *data.AmountCents != chargedCents {
		s.metrics.CallbacksTotal.WithLabelValues("amount_mismatch").Inc()
		s.logger.Warn().
			Str("checkout_request_id", t.CheckoutRequestID).
			Int64("charged_cents", chargedCents).
			Int64("reported_cents", *data.AmountCents).
			Msg("Callback amount differs from initiated charge")
	}
	if data.PhoneNumber != nil && *data.PhoneNumber != t.PhoneNumber {
		s.logger.Warn().
			Str("checkout_request_id", t.CheckoutRequestID).
			Msg("Callback payer differs from initiating phone")
	}
}

func (s *PaymentService) recordCallback(ctx context.Context, cb *mpesa.Callback, procErr error) {
	if procErr != nil {
		msg := procErr.Error()
		cb.ProcessingError = &msg
	}
	// The audit column is jsonb. Wrap undecodable bytes as a JSON string so
	// the payloads that failed parsing still reach the table.
	if !json.Valid(cb.Payload) {
		if wrapped, err := json.Marshal(string(cb.Payload)); err == nil {
			cb.Payload = wrapped
		}
	}
	if err := s.txRepo.RecordCallback(ctx, cb); err != nil {
		s.logger.Error().Err(err).
			Str("checkout_request_id", cb.CheckoutRequestID).
			Msg("Failed to record callback payload")
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
