package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pricebot/internal/apiclient"
	"pricebot/internal/domain"
	"pricebot/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPageSize is the page size of the HTTP catalog listing
const DefaultPageSize = 100

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidRange    = errors.New("min_price must not exceed max_price")
)

// ProductPage is one page of the catalog. Total is nil when the source
// cannot count.
type ProductPage struct {
	Items []domain.Product `json:"data"`
	Total *int             `json:"total,omitempty"`
	Skip  int              `json:"skip"`
	Limit int              `json:"limit"`
}

// CreateProductInput carries the fields of a new product
type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	Quantity    int
	ImageURL    string
	IsActive    bool
	MinPrice    *float64
	MaxPrice    *float64
}

// ProductService is the product catalog as seen by the HTTP API and the
// chat assistant
type ProductService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListPage(ctx context.Context, skip, limit int) (*ProductPage, error)
	SearchProducts(ctx context.Context, query string, skip, limit int) (*ProductPage, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, in CreateProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type productService struct {
	repo   repository.ProductRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewProductService creates a catalog backed by the local database
func NewProductService(repo repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{repo: repo, logger: logger, now: time.Now}
}

func (s *productService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *productService) ListPage(ctx context.Context, skip, limit int) (*ProductPage, error) {
	products, total, err := s.repo.List(ctx, skip, limit, "created_at", repository.SortOrderAsc)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return &ProductPage{Items: products, Total: &total, Skip: skip, Limit: limit}, nil
}

func (s *productService) SearchProducts(ctx context.Context, query string, skip, limit int) (*ProductPage, error) {
	products, total, err := s.repo.Search(ctx, query, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return &ProductPage{Items: products, Total: &total, Skip: skip, Limit: limit}, nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return product, nil
}

func (s *productService) CreateProduct(ctx context.Context, in CreateProductInput) (*domain.Product, error) {
	if !rangeOrdered(in.MinPrice, in.MaxPrice) {
		return nil, ErrInvalidRange
	}

	now := s.now().UTC()
	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		ImageURL:    in.ImageURL,
		IsActive:    in.IsActive,
		MinPrice:    in.MinPrice,
		MaxPrice:    in.MaxPrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name),
	)
	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	if !rangeOrdered(upd.MinPrice, upd.MaxPrice) {
		return nil, ErrInvalidRange
	}

	product, err := s.repo.Patch(ctx, id, upd)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.logger.Info("Product updated", zap.String("product_id", id))
	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrProductNotFound) {
		return ErrProductNotFound
	}
	return err
}

func rangeOrdered(min, max *float64) bool {
	return min == nil || max == nil || *min <= *max
}

// remoteProductService serves the catalog from the external product API
type remoteProductService struct {
	client *apiclient.Client
	logger *zap.Logger
}

// NewRemoteProductService creates a catalog backed by the product backend
func NewRemoteProductService(client *apiclient.Client, logger *zap.Logger) ProductService {
	return &remoteProductService{client: client, logger: logger}
}

func (s *remoteProductService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.client.ListProducts(ctx)
}

func (s *remoteProductService) ListPage(ctx context.Context, skip, limit int) (*ProductPage, error) {
	products, err := s.client.ListPage(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Items: products, Skip: skip, Limit: limit}, nil
}

// SearchProducts filters the whole remote catalog by name or description,
// since the backend has no search endpoint
func (s *remoteProductService) SearchProducts(ctx context.Context, query string, skip, limit int) (*ProductPage, error) {
	all, err := s.client.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	matched := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			matched = append(matched, p)
		}
	}

	total := len(matched)
	start := min(skip, total)
	end := min(start+limit, total)
	return &ProductPage{Items: matched[start:end], Total: &total, Skip: skip, Limit: limit}, nil
}

func (s *remoteProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.client.GetProduct(ctx, id)
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return product, nil
}

func (s *remoteProductService) CreateProduct(ctx context.Context, in CreateProductInput) (*domain.Product, error) {
	if !rangeOrdered(in.MinPrice, in.MaxPrice) {
		return nil, ErrInvalidRange
	}
	return s.client.CreateProduct(ctx, &domain.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		ImageURL:    in.ImageURL,
		IsActive:    in.IsActive,
	})
}

func (s *remoteProductService) UpdateProduct(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	product, err := s.client.UpdateProduct(ctx, id, upd)
	if err != nil {
		return nil, mapRemoteError(err)
	}
	return product, nil
}

func (s *remoteProductService) DeleteProduct(ctx context.Context, id string) error {
	return mapRemoteError(s.client.DeleteProduct(ctx, id))
}

func mapRemoteError(err error) error {
	if errors.Is(err, apiclient.ErrNotFound) {
		return ErrProductNotFound
	}
	return err
}
