package handler

import (
	"context"

	"digistore/internal/checkout"
	"digistore/internal/model"
	"digistore/internal/payment"

	"github.com/stretchr/testify/mock"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) List(ctx context.Context, email string) ([]model.Order, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id string) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Stats(ctx context.Context) (*model.OrderStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderStats), args.Error(1)
}

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func attemptResult(args mock.Arguments) (*checkout.Attempt, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Attempt), args.Error(1)
}

func (m *MockCheckoutService) Start(ctx context.Context, productID string) (*checkout.Attempt, error) {
	return attemptResult(m.Called(ctx, productID))
}

func (m *MockCheckoutService) Submit(ctx context.Context, id string, info model.CustomerInfo) (*checkout.Attempt, error) {
	return attemptResult(m.Called(ctx, id, info))
}

func (m *MockCheckoutService) Get(id string) (*checkout.Attempt, error) {
	return attemptResult(m.Called(id))
}

func (m *MockCheckoutService) Confirm(ctx context.Context, id, transactionID string) (*checkout.Attempt, error) {
	return attemptResult(m.Called(ctx, id, transactionID))
}

func (m *MockCheckoutService) HandleCallback(ctx context.Context, id string, result payment.CallbackResult) (*checkout.Attempt, error) {
	return attemptResult(m.Called(ctx, id, result))
}

func (m *MockCheckoutService) Cancel(ctx context.Context, id string) (*checkout.Attempt, error) {
	return attemptResult(m.Called(ctx, id))
}

// MockDownloadService is a mock implementation of DownloadService.
type MockDownloadService struct {
	mock.Mock
}

func (m *MockDownloadService) Resolve(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}
