package transport

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"pricebot/internal/apiclient"
	"pricebot/internal/domain"
	"pricebot/internal/middleware"
	"pricebot/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateProductRequest represents the product creation payload
type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required,max=50"`
	Description string   `json:"description" validate:"max=2000"`
	Price       float64  `json:"price" validate:"gte=0,lte=99999999.99"`
	Quantity    int      `json:"quantity" validate:"gte=0"`
	ImageURL    string   `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool    `json:"is_active"`
	MinPrice    *float64 `json:"min_price" validate:"omitempty,gte=0"`
	MaxPrice    *float64 `json:"max_price" validate:"omitempty,gte=0"`
}

// UpdateProductRequest represents a partial product update
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=50"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0,lte=99999999.99"`
	Quantity    *int     `json:"quantity" validate:"omitempty,gte=0"`
	ImageURL    *string  `json:"image_url" validate:"omitempty,url"`
	IsActive    *bool    `json:"is_active"`
	MinPrice    *float64 `json:"min_price" validate:"omitempty,gte=0"`
	MaxPrice    *float64 `json:"max_price" validate:"omitempty,gte=0"`
}

func (req UpdateProductRequest) toUpdate() domain.ProductUpdate {
	return domain.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       roundCents(req.Price),
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
		IsActive:    req.IsActive,
		MinPrice:    roundCents(req.MinPrice),
		MaxPrice:    roundCents(req.MaxPrice),
	}
}

// ProductHandler handles HTTP requests for the product catalog
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/{productID}", h.GetProduct)
		r.Put("/{productID}", h.UpdateProduct)
		r.Delete("/{productID}", h.DeleteProduct)
	})
}

// ListProducts returns one page of products. A non-blank q filters by
// name or description.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0, 0, math.MaxInt32)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultPageSize, 1, 500)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var page *service.ProductPage
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		page, err = h.productService.SearchProducts(r.Context(), q, skip, limit)
	} else {
		page, err = h.productService.ListPage(r.Context(), skip, limit)
	}
	if err != nil {
		h.respondWithProductError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// GetProduct returns a single product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.respondWithProductError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct adds a product to the catalog
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	product, err := h.productService.CreateProduct(r.Context(), service.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *roundCents(&req.Price),
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
		IsActive:    active,
		MinPrice:    roundCents(req.MinPrice),
		MaxPrice:    roundCents(req.MaxPrice),
	})
	if err != nil {
		h.respondWithProductError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct applies a partial update
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Product update validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), req.toUpdate())
	if err != nil {
		h.respondWithProductError(w, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a product
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.productService.DeleteProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		h.respondWithProductError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) respondWithProductError(w http.ResponseWriter, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrInvalidRange):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apiclient.ErrUnauthorized), errors.As(err, &apiErr):
		h.logger.Error("Product backend request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, "product backend unavailable")
	default:
		h.logger.Error("Product request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "product request failed")
	}
}

// roundCents rounds a price to whole cents
func roundCents(v *float64) *float64 {
	if v == nil {
		return nil
	}
	rounded := math.Round(*v*100) / 100
	return &rounded
}
