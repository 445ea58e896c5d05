package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"digistore/internal/catalog"
	"digistore/internal/checkout"
	"digistore/internal/config"
	"digistore/internal/database"
	"digistore/internal/download"
	"digistore/internal/handler"
	"digistore/internal/ledger"
	"digistore/internal/payment"
	"digistore/internal/repository"
	"digistore/internal/router"
	"digistore/internal/security"
	"digistore/internal/service"
	"digistore/internal/snapshot"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAPIKey     = "test-api-key"
	testSigningKey = "integration-signing-key"
	filesBaseURL   = "https://files.example.com"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a PostgreSQL container, applies the migrations and
// opens a connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.Nop()
	if err := database.Migrate(database.DialectPostgres, connStr, logger); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	pool, err := database.NewPoolFromURL(ctx, connStr, config.DatabaseConfig{MaxConnections: 10, MinConnections: 2}, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// CleanupDB removes every order.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	if _, err := pool.Exec(context.Background(), "DELETE FROM orders"); err != nil {
		t.Logf("failed to clean orders: %v", err)
	}
}

// OpenSQLiteRepository migrates and opens a SQLite order repository in a
// temporary directory.
func OpenSQLiteRepository(t *testing.T) repository.OrderRepository {
	t.Helper()

	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "orders.db")
	require.NoError(t, database.Migrate(database.DialectSQLite, path, logger))

	db, err := database.OpenSQLite(context.Background(), path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return repository.NewSQLiteOrderRepository(db, logger)
}

// TestServer is the full HTTP stack over the demo gateway.
type TestServer struct {
	*httptest.Server
	Ledger *ledger.Store
}

// SetupTestServer wires the API the way cmd/api does, using repo as the
// primary order store and a file snapshot in a temporary directory.
func SetupTestServer(t *testing.T, repo repository.OrderRepository) *TestServer {
	t.Helper()

	logger := zerolog.Nop()

	products, err := catalog.Load("", logger)
	require.NoError(t, err)

	orders := ledger.New(repo, snapshot.NewFileStore(filepath.Join(t.TempDir(), "orders.json.gz"), logger), logger)
	limiter := security.NewMemoryLimiter(0, logger)

	srv := httptest.NewUnstartedServer(nil)
	signer := download.NewSigner(testSigningKey, 30*24*time.Hour, "http://"+srv.Listener.Addr().String())

	orchestrator := checkout.New(checkout.Config{
		RateLimitMax:    5,
		RateLimitWindow: 15 * time.Minute,
		GatewayTimeout:  5 * time.Second,
		AttemptTTL:      time.Hour,
		RedirectURL:     "http://localhost/payment/complete",
	}, checkout.Deps{
		Products: products,
		Orders:   orders,
		Gateway:  payment.NewDemo("http://localhost/payment/complete", 0, logger),
		Limiter:  limiter,
		Links:    signer,
	}, logger)

	productService := service.NewProductService(products, logger)
	orderService := service.NewOrderService(orders, logger)
	downloadService := service.NewDownloadService(signer, orders, products, download.NewBaseURLLocator(filesBaseURL), logger)

	srv.Config.Handler = router.New(
		handler.NewProductHandler(productService, logger),
		handler.NewCheckoutHandler(orchestrator, logger),
		handler.NewOrderHandler(orderService, logger),
		handler.NewDownloadHandler(downloadService, logger),
		router.Options{
			APIKey:      testAPIKey,
			Limiter:     limiter,
			MaxRequests: 20,
			Window:      time.Minute,
		},
		logger,
	)
	srv.Start()
	t.Cleanup(srv.Close)

	return &TestServer{Server: srv, Ledger: orders}
}

// NoRedirectClient returns a client that reports redirects instead of
// following them.
func NoRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
