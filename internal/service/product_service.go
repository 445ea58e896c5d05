package service

import (
	"context"
	"fmt"

	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// ProductSource is the product catalogue. Implemented by *catalog.Catalog.
type ProductSource interface {
	List(ctx context.Context) ([]model.Product, error)
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// productService implements ProductService.
type productService struct {
	products ProductSource
	logger   zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(products ProductSource, logger zerolog.Logger) ProductService {
	return &productService{
		products: products,
		logger:   logger.With().Str("service", "product").Logger(),
	}
}

// GetAll retrieves products with pagination.
func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	all, err := s.products.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	if offset >= len(all) {
		return []model.Product{}, nil
	}
	end := min(offset+limit, len(all))
	page := all[offset:end]

	s.logger.Debug().
		Int("count", len(page)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return page, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		s.logger.Warn().Msg("product ID is empty")
		return nil, model.ErrProductNotFound
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product == nil {
		s.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	return product, nil
}
