package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err     error
	status  int
	code    string
	message string // overrides err.Error() when set
}

var errorMappings = []errorMapping{
	{err: domainErrors.ErrUserNotFound, status: http.StatusNotFound, code: "not_found"},
	{err: domainErrors.ErrUserAlreadyExists, status: http.StatusConflict, code: "email_taken"},
	{err: domainErrors.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},
	{err: domainErrors.ErrTokenRevoked, status: http.StatusUnauthorized, code: "auth_revoked"},
	{err: domainErrors.ErrUnauthorized, status: http.StatusUnauthorized, code: "unauthorized"},
	{err: domainErrors.ErrForbidden, status: http.StatusForbidden, code: "forbidden"},

	{err: domainErrors.ErrProductNotFound, status: http.StatusNotFound, code: "not_found"},
	{err: domainErrors.ErrCategoryNotFound, status: http.StatusNotFound, code: "not_found"},
	{err: domainErrors.ErrProductInactive, status: http.StatusUnprocessableEntity, code: "product_inactive"},
	{err: domainErrors.ErrInsufficientStock, status: http.StatusUnprocessableEntity, code: "insufficient_stock"},
	{err: domainErrors.ErrDuplicateSlug, status: http.StatusConflict, code: "duplicate_slug"},

	{err: domainErrors.ErrCartEmpty, status: http.StatusUnprocessableEntity, code: "cart_empty"},
	{err: domainErrors.ErrCartItemNotFound, status: http.StatusNotFound, code: "not_found"},

	{err: domainErrors.ErrOrderNotFound, status: http.StatusNotFound, code: "not_found"},
	{err: domainErrors.ErrOrderNotCancelable, status: http.StatusConflict, code: "order_not_cancelable"},
	{err: domainErrors.ErrOrderAlreadyPaid, status: http.StatusConflict, code: "order_already_paid"},

	{err: domainErrors.ErrTransactionNotFound, status: http.StatusNotFound, code: "not_found"},
	{err: domainErrors.ErrInvalidStateTransition, status: http.StatusConflict, code: "invalid_state_transition"},
	{err: domainErrors.ErrReconciliationConflict, status: http.StatusConflict, code: "conflict"},

	// Provider failures carry internal detail (endpoints, result codes) that
	// API clients have no use for.
	{err: domainErrors.ErrUpstreamAuth, status: http.StatusBadGateway, code: "payment_provider_error",
		message: "payment could not be initiated, please try again later"},
	{err: domainErrors.ErrUpstreamRequest, status: http.StatusBadGateway, code: "payment_provider_error",
		message: "payment could not be processed, please try again later"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			if m.message != "" {
				resp.Error = m.message
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
