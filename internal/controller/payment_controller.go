package controller

import (
	"io"
	"net/http"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/middleware"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxCallbackBodySize = 1 << 20

type PaymentController struct {
	paymentService *service.PaymentService
	logger         zerolog.Logger
}

func NewPaymentController(paymentService *service.PaymentService, logger zerolog.Logger) *PaymentController {
	return &PaymentController{paymentService: paymentService, logger: logger}
}

func (h *PaymentController) STKPush(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req STKPushRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Code: "invalid_id"})
		return
	}

	t, err := h.paymentService.InitiateSTKPush(r.Context(), service.InitiateSTKPushRequest{
		UserID:      userID,
		OrderID:     orderID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, FromTransaction(t))
}

// Callback is the public Daraja webhook. It always replies 200 with a
// ResultCode 0 body: failures are logged and recorded, never surfaced, since
// the provider's retry cannot fix a conflict on our side.
func (h *PaymentController) Callback(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBodySize))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read callback body")
		writeJSON(w, http.StatusOK, CallbackAck{ResultCode: 0, ResultDesc: "Accepted"})
		return
	}

	if err := h.paymentService.ProcessCallback(r.Context(), payload); err != nil {
		h.logger.Warn().Err(err).Msg("Callback processing failed")
	}

	writeJSON(w, http.StatusOK, CallbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}

func (h *PaymentController) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	// Either the internal ID or the provider's CheckoutRequestID.
	ref := chi.URLParam(r, "id")
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing transaction id", Code: "invalid_id"})
		return
	}

	t, err := h.paymentService.GetTransaction(r.Context(), userID, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromTransaction(t))
}

func (h *PaymentController) ListForOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Code: "invalid_id"})
		return
	}

	txns, err := h.paymentService.ListOrderTransactions(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*TransactionResponse, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, FromTransaction(t))
	}
	writeJSON(w, http.StatusOK, resp)
}
