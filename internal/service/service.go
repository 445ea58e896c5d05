package service

import (
	"context"

	"digistore/internal/checkout"
	"digistore/internal/model"
	"digistore/internal/payment"
)

// ProductService defines read access to the catalogue.
type ProductService interface {
	// GetAll retrieves products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// OrderService defines the admin view of orders.
type OrderService interface {
	// List returns every order newest first, or only those placed with
	// email when it is not empty.
	List(ctx context.Context, email string) ([]model.Order, error)

	// GetByID retrieves an order by its ID.
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// Stats aggregates revenue and counts.
	Stats(ctx context.Context) (*model.OrderStats, error)
}

// CheckoutService drives checkout attempts. Implemented by *checkout.Orchestrator.
type CheckoutService interface {
	Start(ctx context.Context, productID string) (*checkout.Attempt, error)
	Submit(ctx context.Context, id string, info model.CustomerInfo) (*checkout.Attempt, error)
	Get(id string) (*checkout.Attempt, error)
	Confirm(ctx context.Context, id, transactionID string) (*checkout.Attempt, error)
	HandleCallback(ctx context.Context, id string, result payment.CallbackResult) (*checkout.Attempt, error)
	Cancel(ctx context.Context, id string) (*checkout.Attempt, error)
}

var _ CheckoutService = (*checkout.Orchestrator)(nil)

// DownloadService resolves signed download links.
type DownloadService interface {
	// Resolve checks token and returns where the product file can be fetched.
	Resolve(ctx context.Context, token string) (string, error)
}
