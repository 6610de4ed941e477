package controller

import (
	"net/http"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/middleware"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CartController struct {
	cartService *service.CartService
}

func NewCartController(cartService *service.CartService) *CartController {
	return &CartController{cartService: cartService}
}

func (h *CartController) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	lines, totalCents, err := h.cartService.GetCart(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := CartResponse{Items: make([]*CartItemResponse, 0, len(lines)), Total: centsToFloat(totalCents)}
	for _, l := range lines {
		resp.Items = append(resp.Items, FromCartLine(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req AddCartItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid product id", Code: "invalid_id"})
		return
	}

	if _, err := h.cartService.AddItem(r.Context(), userID, productID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}

	h.Get(w, r)
}

func (h *CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid product id", Code: "invalid_id"})
		return
	}

	if err := h.cartService.RemoveItem(r.Context(), userID, productID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartController) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	if err := h.cartService.Clear(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
