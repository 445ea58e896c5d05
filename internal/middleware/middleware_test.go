package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"digistore/internal/model"
	"digistore/internal/security"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		expectedStatus int
		expectHandler  bool
	}{
		{
			name:           "Preflight request",
			method:         http.MethodOptions,
			expectedStatus: http.StatusNoContent,
			expectHandler:  false,
		},
		{
			name:           "GET request",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectHandler:  true,
		},
		{
			name:           "POST request",
			method:         http.MethodPost,
			expectedStatus: http.StatusOK,
			expectHandler:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			})

			handler := CORS(testHandler)

			req := httptest.NewRequest(tt.method, "/test", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectHandler, handlerCalled)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "Content-Type, X-API-Key", w.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	logger := zerolog.Nop()
	validAPIKey := "test-api-key-123"

	tests := []struct {
		name           string
		path           string
		apiKey         string
		expectedStatus int
		expectHandler  bool
	}{
		{
			name:           "Valid API key",
			path:           "/api/orders",
			apiKey:         validAPIKey,
			expectedStatus: http.StatusOK,
			expectHandler:  true,
		},
		{
			name:           "Invalid API key",
			path:           "/api/orders",
			apiKey:         "invalid-key",
			expectedStatus: http.StatusUnauthorized,
			expectHandler:  false,
		},
		{
			name:           "Missing API key",
			path:           "/api/orders/stats",
			apiKey:         "",
			expectedStatus: http.StatusUnauthorized,
			expectHandler:  false,
		},
		{
			name:           "Key prefix is not enough",
			path:           "/api/orders",
			apiKey:         "test-api",
			expectedStatus: http.StatusUnauthorized,
			expectHandler:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			})

			handler := APIKeyAuth(validAPIKey, logger)(testHandler)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectHandler, handlerCalled)
			if !tt.expectHandler {
				var resp model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, model.ErrCodeUnauthorised, resp.Error)
			}
		})
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestRateLimit(t *testing.T) {
	logger := zerolog.Nop()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Limits per client IP", func(t *testing.T) {
		limiter := security.NewMemoryLimiter(0, logger)
		handler := RateLimit(limiter, 2, time.Minute, nil, logger)(ok)

		statuses := make([]int, 0, 4)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
			req.RemoteAddr = "10.0.0.1:5000"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			statuses = append(statuses, w.Code)
			if w.Code == http.StatusTooManyRequests {
				assert.Equal(t, "60", w.Header().Get("Retry-After"))
			}
		}

		req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
		req.RemoteAddr = "10.0.0.2:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusOK}, statuses)
	})

	t.Run("Fails open when limiter errors", func(t *testing.T) {
		handler := RateLimit(failingLimiter{}, 1, time.Minute, nil, logger)(ok)

		req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Forwarded header cannot rotate the key", func(t *testing.T) {
		trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
		require.NoError(t, err)

		tests := []struct {
			name       string
			remoteAddr string
			trusted    []netip.Prefix
		}{
			{name: "Direct client", remoteAddr: "198.51.100.4:1234"},
			{name: "Untrusted peer with proxies configured", remoteAddr: "198.51.100.4:1234", trusted: trusted},
			{name: "Behind trusted proxy", remoteAddr: "10.0.0.5:80", trusted: trusted},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				limiter := security.NewMemoryLimiter(0, logger)
				handler := RateLimit(limiter, 3, time.Minute, tt.trusted, logger)(ok)

				allowed := 0
				for i := 0; i < 50; i++ {
					req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
					req.RemoteAddr = tt.remoteAddr
					// Every request claims a different origin left of the real one.
					req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.0.2.%d, 198.51.100.4", i))
					w := httptest.NewRecorder()
					handler.ServeHTTP(w, req)
					if w.Code == http.StatusOK {
						allowed++
					}
				}

				assert.Equal(t, 3, allowed)
			})
		}
	})
}

func TestParseTrustedProxies(t *testing.T) {
	tests := []struct {
		name     string
		entries  []string
		expected []netip.Prefix
		wantErr  bool
	}{
		{name: "Empty", entries: nil, expected: []netip.Prefix{}},
		{
			name:     "Address and range",
			entries:  []string{" 10.0.0.1 ", "172.16.5.0/12", ""},
			expected: []netip.Prefix{netip.MustParsePrefix("10.0.0.1/32"), netip.MustParsePrefix("172.16.0.0/12")},
		},
		{name: "IPv6 address", entries: []string{"::1"}, expected: []netip.Prefix{netip.MustParsePrefix("::1/128")}},
		{name: "Garbage", entries: []string{"proxy.local"}, wantErr: true},
		{name: "Bad range", entries: []string{"10.0.0.0/40"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefixes, err := ParseTrustedProxies(tt.entries)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, prefixes)
		})
	}
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "172.16.0.1"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		trusted    []netip.Prefix
		expected   string
	}{
		{name: "Remote address", remoteAddr: "192.0.2.7:4410", expected: "192.0.2.7"},
		{name: "Remote without port", remoteAddr: "192.0.2.7", expected: "192.0.2.7"},
		{name: "Forwarded ignored without trusted proxies", forwarded: "203.0.113.9", remoteAddr: "10.0.0.1:80", expected: "10.0.0.1"},
		{name: "Forwarded ignored from untrusted peer", forwarded: "203.0.113.9", remoteAddr: "192.0.2.7:4410", trusted: trusted, expected: "192.0.2.7"},
		{name: "Single trusted proxy", forwarded: "203.0.113.9", remoteAddr: "10.0.0.1:80", trusted: trusted, expected: "203.0.113.9"},
		{name: "Spoofed entries left of real client", forwarded: "1.1.1.1, 203.0.113.9", remoteAddr: "10.0.0.1:80", trusted: trusted, expected: "203.0.113.9"},
		{name: "Proxy chain", forwarded: "203.0.113.9, 172.16.0.1, 10.2.3.4", remoteAddr: "10.0.0.1:80", trusted: trusted, expected: "203.0.113.9"},
		{name: "All hops trusted", forwarded: "10.9.9.9", remoteAddr: "10.0.0.1:80", trusted: trusted, expected: "10.9.9.9"},
		{name: "Malformed hop", forwarded: "203.0.113.9, not-an-ip", remoteAddr: "10.0.0.1:80", trusted: trusted, expected: "10.0.0.1"},
		{name: "Missing header behind proxy", remoteAddr: "10.0.0.1:80", trusted: trusted, expected: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.expected, ClientIP(req, tt.trusted))
		})
	}
}

func TestLogging(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name           string
		method         string
		path           string
		handlerStatus  int
		expectedStatus int
	}{
		{
			name:           "Successful request",
			method:         http.MethodGet,
			path:           "/api/products",
			handlerStatus:  http.StatusOK,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Not found request",
			method:         http.MethodGet,
			path:           "/api/unknown",
			handlerStatus:  http.StatusNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Server error",
			method:         http.MethodPost,
			path:           "/api/orders",
			handlerStatus:  http.StatusInternalServerError,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})

			handler := Logging(logger)(testHandler)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name           string
		shouldPanic    bool
		panicValue     interface{}
		expectedStatus int
	}{
		{
			name:           "No panic",
			shouldPanic:    false,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Panic with string",
			shouldPanic:    true,
			panicValue:     "something went wrong",
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Panic with error",
			shouldPanic:    true,
			panicValue:     assert.AnError,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.shouldPanic {
					panic(tt.panicValue)
				}
				w.WriteHeader(http.StatusOK)
			})

			handler := Recovery(logger)(testHandler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			// Ensure we don't panic in the test
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.shouldPanic {
				assert.Contains(t, w.Body.String(), "internal server error")
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		expectedStatus int
	}{
		{
			name:           "Status OK",
			statusCode:     http.StatusOK,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Status Created",
			statusCode:     http.StatusCreated,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Status Not Found",
			statusCode:     http.StatusNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Status Internal Server Error",
			statusCode:     http.StatusInternalServerError,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			rw.WriteHeader(tt.statusCode)

			assert.Equal(t, tt.expectedStatus, rw.statusCode)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
