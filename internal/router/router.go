package router

import (
	"net/http"
	"net/netip"
	"time"

	"digistore/internal/handler"
	"digistore/internal/middleware"
	"digistore/internal/security"

	"github.com/rs/zerolog"
)

// Options configures route protection.
type Options struct {
	// APIKey guards the admin order routes.
	APIKey string

	// Limiter throttles checkout creation per client IP. Nil disables it.
	Limiter     security.Limiter
	MaxRequests int
	Window      time.Duration

	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies []netip.Prefix
}

// New creates a new HTTP router with all routes and middleware configured.
func New(
	productHandler *handler.ProductHandler,
	checkoutHandler *handler.CheckoutHandler,
	orderHandler *handler.OrderHandler,
	downloadHandler *handler.DownloadHandler,
	opts Options,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	// Catalogue
	mux.HandleFunc("GET /api/products", productHandler.GetAll)
	mux.HandleFunc("GET /api/products/{id}", productHandler.GetByID)

	// Checkout
	var create http.Handler = http.HandlerFunc(checkoutHandler.Create)
	if opts.Limiter != nil {
		create = middleware.RateLimit(opts.Limiter, opts.MaxRequests, opts.Window, opts.TrustedProxies, logger)(create)
	}
	mux.Handle("POST /api/checkout", create)
	mux.HandleFunc("GET /api/checkout/{id}", checkoutHandler.Get)
	mux.HandleFunc("POST /api/checkout/{id}/submit", checkoutHandler.Submit)
	mux.HandleFunc("POST /api/checkout/{id}/confirm", checkoutHandler.Confirm)
	mux.HandleFunc("POST /api/checkout/{id}/callback", checkoutHandler.Callback)
	mux.HandleFunc("POST /api/checkout/{id}/cancel", checkoutHandler.Cancel)

	// Downloads
	mux.HandleFunc("GET /api/downloads/{token}", downloadHandler.Get)

	// Admin
	admin := middleware.APIKeyAuth(opts.APIKey, logger)
	mux.Handle("GET /api/orders", admin(http.HandlerFunc(orderHandler.List)))
	mux.Handle("GET /api/orders/stats", admin(http.HandlerFunc(orderHandler.Stats)))
	mux.Handle("GET /api/orders/{id}", admin(http.HandlerFunc(orderHandler.GetByID)))

	// Apply middleware in order: Recovery -> Logging -> CORS
	var handler http.Handler = mux
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
