package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digistore/internal/app"
	"digistore/internal/catalog"
	"digistore/internal/checkout"
	"digistore/internal/config"
	"digistore/internal/download"
	"digistore/internal/events"
	"digistore/internal/handler"
	"digistore/internal/middleware"
	"digistore/internal/notify"
	"digistore/internal/payment"
	"digistore/internal/router"
	"digistore/internal/security"
	"digistore/internal/service"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().
		Str("environment", cfg.Environment).
		Str("payment_provider", cfg.Payment.Provider).
		Str("order_store", cfg.Store.Backend).
		Msg("starting digistore API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Order ledger: primary repository plus snapshot cache
	orders, closeStore, err := app.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	products, err := catalog.Load(cfg.Catalog.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	gateway, err := payment.New(cfg.Payment, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	limiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	signer := download.NewSigner(cfg.Download.SigningKey, cfg.Download.TTL, cfg.Download.PublicBaseURL)
	files, err := newFileLocator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	orchestrator := checkout.New(checkout.Config{
		RateLimitMax:    cfg.RateLimit.MaxRequests,
		RateLimitWindow: cfg.RateLimit.Window,
		GatewayTimeout:  cfg.Payment.Timeout,
		AttemptTTL:      cfg.Checkout.AttemptTTL,
		RedirectURL:     cfg.Payment.RedirectURL,
		PublicKey:       cfg.Payment.PublicKey,
	}, checkout.Deps{
		Products: products,
		Orders:   orders,
		Gateway:  gateway,
		Limiter:  limiter,
		Notifier: newNotifier(cfg.Email, cfg.Payment.Timeout, logger),
		Events:   publisher,
		Links:    signer,
	}, logger)
	go orchestrator.Run(ctx, cfg.Checkout.SweepInterval)

	// Initialize services
	productService := service.NewProductService(products, logger)
	orderService := service.NewOrderService(orders, logger)
	downloadService := service.NewDownloadService(signer, orders, products, files, logger)

	// Initialize HTTP handlers
	productHandler := handler.NewProductHandler(productService, logger)
	checkoutHandler := handler.NewCheckoutHandler(orchestrator, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)
	downloadHandler := handler.NewDownloadHandler(downloadService, logger)

	// Initialize router
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("failed to parse trusted proxies: %w", err)
	}
	mux := router.New(productHandler, checkoutHandler, orderHandler, downloadHandler, router.Options{
		APIKey:         cfg.Auth.APIKey,
		Limiter:        limiter,
		MaxRequests:    cfg.RateLimit.MaxRequests,
		Window:         cfg.RateLimit.Window,
		TrustedProxies: trustedProxies,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Payment.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newLimiter returns the checkout limiter. The in-memory limiter is swept
// in the background until ctx ends.
func newLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (security.Limiter, error) {
	if cfg.RateLimit.Backend == config.RateLimitRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup, rate limiting will fail open until it recovers")
		}
		return security.NewRedisLimiter(client, "digistore:ratelimit:", logger), nil
	}

	limiter := security.NewMemoryLimiter(cfg.RateLimit.MaxKeys, logger)
	go limiter.Run(ctx, cfg.RateLimit.SweepInterval)
	return limiter, nil
}

func newPublisher(cfg config.EventsConfig, logger zerolog.Logger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NewLogPublisher(logger), nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	return publisher, nil
}

func newNotifier(cfg config.EmailConfig, timeout time.Duration, logger zerolog.Logger) notify.Dispatcher {
	if cfg.APIKey == "" {
		logger.Warn().Msg("EMAIL_API_KEY not set, confirmation emails are logged only")
		return notify.NewLogDispatcher(logger)
	}
	return notify.NewMailer(notify.MailerConfig{
		APIKey:      cfg.APIKey,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
		BaseURL:     cfg.BaseURL,
		RatePerSec:  cfg.RatePerSec,
		Timeout:     timeout,
	}, logger)
}

// newFileLocator serves product files from S3 when a bucket is configured.
func newFileLocator(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (download.FileLocator, error) {
	if cfg.Download.FilesBucket == "" {
		return download.NewBaseURLLocator(cfg.Download.FilesBaseURL), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	logger.Info().Str("bucket", cfg.Download.FilesBucket).Msg("serving product files from S3")
	return download.NewS3Locator(s3.NewFromConfig(awsCfg), cfg.Download.FilesBucket, cfg.Download.PresignExpires), nil
}
