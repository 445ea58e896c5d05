package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"digistore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(id string, createdAt time.Time) *model.Order {
	return &model.Order{
		ID:               id,
		ProductID:        "51",
		ProductName:      "Forex Course",
		Amount:           5000,
		CustomerName:     "Ada Obi",
		CustomerEmail:    "ada@example.com",
		CustomerPhone:    "08123456789",
		Status:           model.OrderStatusPending,
		PaymentReference: id,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

// runOrderRepositoryContract exercises the behaviour every OrderRepository
// implementation must share.
func runOrderRepositoryContract(t *testing.T, newRepo func(t *testing.T) OrderRepository) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Create and GetByID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		order := testOrder("DS_1", base)
		require.NoError(t, repo.Create(ctx, order))

		got, err := repo.GetByID(ctx, "DS_1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, order.ID, got.ID)
		assert.Equal(t, order.ProductName, got.ProductName)
		assert.Equal(t, order.Amount, got.Amount)
		assert.Equal(t, order.CustomerEmail, got.CustomerEmail)
		assert.Equal(t, model.OrderStatusPending, got.Status)
		assert.True(t, order.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("GetByID missing returns nil", func(t *testing.T) {
		repo := newRepo(t)

		got, err := repo.GetByID(context.Background(), "DS_missing")

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Duplicate ID rejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, testOrder("DS_1", base)))

		dup := testOrder("DS_1", base.Add(time.Minute))
		dup.Amount = 9999
		err := repo.Create(ctx, dup)

		assert.ErrorIs(t, err, model.ErrDuplicateOrder)
		got, _ := repo.GetByID(ctx, "DS_1")
		assert.Equal(t, int64(5000), got.Amount)
	})

	t.Run("Update applies guarded status change", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		order := testOrder("DS_1", base)
		require.NoError(t, repo.Create(ctx, order))

		order.Status = model.OrderStatusCompleted
		order.TransactionID = "288200108"
		order.DownloadURL = "https://digistore.ng/api/downloads/token"
		order.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, repo.Update(ctx, order, model.OrderStatusPending))

		got, err := repo.GetByID(ctx, "DS_1")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCompleted, got.Status)
		assert.Equal(t, "288200108", got.TransactionID)
		assert.Equal(t, "https://digistore.ng/api/downloads/token", got.DownloadURL)
		assert.True(t, base.Equal(got.CreatedAt), "createdAt never changes")

		// A writer still expecting pending loses.
		order.Status = model.OrderStatusFailed
		err = repo.Update(ctx, order, model.OrderStatusPending)
		assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
	})

	t.Run("Update missing order", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.Update(context.Background(), testOrder("DS_missing", base), model.OrderStatusPending)

		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})

	t.Run("List newest first with id tie-break", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, testOrder("DS_b", base)))
		require.NoError(t, repo.Create(ctx, testOrder("DS_a", base)))
		require.NoError(t, repo.Create(ctx, testOrder("DS_new", base.Add(time.Hour))))
		require.NoError(t, repo.Create(ctx, testOrder("DS_old", base.Add(-time.Hour))))

		orders, err := repo.List(ctx)
		require.NoError(t, err)

		ids := make([]string, len(orders))
		for i, o := range orders {
			ids[i] = o.ID
		}
		assert.Equal(t, []string{"DS_new", "DS_a", "DS_b", "DS_old"}, ids)
	})

	t.Run("Concurrent creates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, repo.Create(ctx, testOrder(fmt.Sprintf("DS_%02d", i), base)))
			}(i)
		}
		wg.Wait()

		orders, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, orders, 20)
	})
}
