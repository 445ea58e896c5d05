package service

import (
	"context"
	"fmt"

	"digistore/internal/download"
	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// TokenVerifier checks download tokens. Implemented by *download.Signer.
type TokenVerifier interface {
	Verify(token string) (*download.Claims, error)
}

// downloadService implements DownloadService.
type downloadService struct {
	tokens   TokenVerifier
	orders   OrderLedger
	products ProductSource
	files    download.FileLocator
	logger   zerolog.Logger
}

// NewDownloadService creates a new download service.
func NewDownloadService(tokens TokenVerifier, orders OrderLedger, products ProductSource, files download.FileLocator, logger zerolog.Logger) DownloadService {
	return &downloadService{
		tokens:   tokens,
		orders:   orders,
		products: products,
		files:    files,
		logger:   logger.With().Str("service", "download").Logger(),
	}
}

// Resolve returns the file location for a valid token. The order it names
// must exist, be completed and be for the product in the token.
func (s *downloadService) Resolve(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Warn().Msg("rejected download token")
		return "", err
	}

	order, err := s.orders.GetOrder(ctx, claims.OrderID())
	if err != nil {
		return "", fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil || order.Status != model.OrderStatusCompleted || order.ProductID != claims.ProductID {
		s.logger.Warn().Str("order_id", claims.OrderID()).Msg("download token does not match a completed order")
		return "", model.ErrInvalidDownloadToken
	}

	product, err := s.products.GetByID(ctx, claims.ProductID)
	if err != nil {
		return "", fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return "", model.ErrProductNotFound
	}

	location, err := s.files.Locate(ctx, product.FileURL)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to locate product file")
		return "", fmt.Errorf("failed to locate product file: %w", err)
	}

	s.logger.Info().Str("order_id", order.ID).Str("product_id", product.ID).Msg("download resolved")
	return location, nil
}
