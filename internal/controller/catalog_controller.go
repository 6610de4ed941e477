package controller

import (
	"net/http"
	"strconv"

	"github.com/dmwangi/medsupply/internal/domain/catalog"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CatalogController struct {
	catalogService *service.CatalogService
}

func NewCatalogController(catalogService *service.CatalogService) *CatalogController {
	return &CatalogController{catalogService: catalogService}
}

func (h *CatalogController) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.ListFilter{
		Search:     q.Get("search"),
		ActiveOnly: true,
	}
	if raw := q.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid category id", Code: "invalid_id"})
			return
		}
		f.CategoryID = &id
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	products, err := h.catalogService.ListProducts(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*ProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, FromProduct(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CatalogController) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid product id", Code: "invalid_id"})
		return
	}

	p, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromProduct(p))
}

func (h *CatalogController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid category id", Code: "invalid_id"})
		return
	}

	p, err := h.catalogService.CreateProduct(r.Context(), service.CreateProductRequest{
		CategoryID:  categoryID,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		PriceCents:  floatToCents(req.Price),
		Stock:       req.Stock,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromProduct(p))
}

func (h *CatalogController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid product id", Code: "invalid_id"})
		return
	}

	var req UpdateProductRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	upd := service.UpdateProductRequest{
		Name:        req.Name,
		Description: req.Description,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	}
	if req.Price != nil {
		cents := floatToCents(*req.Price)
		upd.PriceCents = &cents
	}

	p, err := h.catalogService.UpdateProduct(r.Context(), id, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromProduct(p))
}

func (h *CatalogController) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*CategoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, FromCategory(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CatalogController) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.catalogService.CreateCategory(r.Context(), req.Name, req.Slug, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromCategory(c))
}
