package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digistore/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() PaymentRequest {
	return PaymentRequest{
		Reference: "DS_1700000000000_abc",
		Amount:    5000,
		Customer: model.CustomerInfo{
			Name:  "Ada Obi",
			Email: "ada@example.com",
			Phone: "08123456789",
		},
		ProductID:   "51",
		ProductName: "Forex Course",
	}
}

func TestFlutterwave_Initialize(t *testing.T) {
	var received flwPaymentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer FLWSECK_TEST", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.flutterwave.com/pay/abc"}}`))
	}))
	defer server.Close()

	gw := NewFlutterwave(server.URL, "FLWSECK_TEST", "https://digistore.ng/complete", server.Client(), zerolog.Nop())

	init, err := gw.Initialize(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.flutterwave.com/pay/abc", init.RedirectLink)
	assert.Equal(t, "DS_1700000000000_abc", init.Reference)

	assert.Equal(t, "DS_1700000000000_abc", received.TxRef)
	assert.Equal(t, int64(5000), received.Amount)
	assert.Equal(t, "NGN", received.Currency)
	assert.Equal(t, "https://digistore.ng/complete", received.RedirectURL)
	assert.Equal(t, flutterwavePaymentOptions, received.PaymentOptions)
	assert.Equal(t, "ada@example.com", received.Customer.Email)
	assert.Equal(t, "08123456789", received.Customer.PhoneNumber)
	assert.Equal(t, "Payment for Forex Course", received.Customizations.Description)
	assert.Equal(t, "51", received.Meta["product_id"])
}

func TestFlutterwave_Initialize_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "Provider rejects request",
			statusCode: http.StatusUnauthorized,
			body:       `{"status":"error","message":"Invalid authorization key"}`,
			check: func(t *testing.T, err error) {
				var gwErr *model.GatewayError
				require.True(t, errors.As(err, &gwErr))
				assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
				assert.Equal(t, "Invalid authorization key", gwErr.Status)
				assert.Equal(t, "flutterwave", gwErr.Provider)
			},
		},
		{
			name:       "Provider error without body",
			statusCode: http.StatusBadGateway,
			body:       ``,
			check: func(t *testing.T, err error) {
				var gwErr *model.GatewayError
				require.True(t, errors.As(err, &gwErr))
				assert.Equal(t, "Bad Gateway", gwErr.Status)
			},
		},
		{
			name:       "Success status without link",
			statusCode: http.StatusOK,
			body:       `{"status":"error","message":"tx_ref already used","data":{}}`,
			check: func(t *testing.T, err error) {
				var gwErr *model.GatewayError
				require.True(t, errors.As(err, &gwErr))
				assert.Equal(t, "tx_ref already used", gwErr.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			gw := NewFlutterwave(server.URL, "key", "", server.Client(), zerolog.Nop())

			init, err := gw.Initialize(context.Background(), testRequest())

			assert.Nil(t, init)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestFlutterwave_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	gw := NewFlutterwave(url, "key", "", &http.Client{Timeout: time.Second}, zerolog.Nop())

	_, err := gw.Initialize(context.Background(), testRequest())

	var netErr *model.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Contains(t, netErr.Op, "flutterwave POST /payments")
}

func TestFlutterwave_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	gw := NewFlutterwave(server.URL, "key", "", server.Client(), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.Verify(ctx, "12345")

	var netErr *model.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlutterwave_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transactions/288200108/verify", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"status": "success",
			"message": "Transaction fetched successfully",
			"data": {
				"id": 288200108,
				"tx_ref": "DS_1700000000000_abc",
				"flw_ref": "FLW-MOCK-123",
				"amount": 5000,
				"currency": "NGN",
				"status": "successful",
				"customer": {"email": "ada@example.com", "name": "Ada Obi"}
			}
		}`))
	}))
	defer server.Close()

	gw := NewFlutterwave(server.URL, "key", "", server.Client(), zerolog.Nop())

	v, err := gw.Verify(context.Background(), "288200108")

	require.NoError(t, err)
	assert.Equal(t, "288200108", v.TransactionID)
	assert.Equal(t, "DS_1700000000000_abc", v.Reference)
	assert.Equal(t, "FLW-MOCK-123", v.ProviderRef)
	assert.Equal(t, int64(5000), v.Amount)
	assert.Equal(t, VerifiedStatus, v.Status)
	assert.True(t, v.Successful("DS_1700000000000_abc", 5000))
}

func TestFlutterwave_VerifyByReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		assert.Equal(t, "DS_1700000000000_abc", r.URL.Query().Get("tx_ref"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"id":1,"tx_ref":"DS_1700000000000_abc","amount":5000,"currency":"NGN","status":"failed"}}`))
	}))
	defer server.Close()

	gw := NewFlutterwave(server.URL, "key", "", server.Client(), zerolog.Nop())

	v, err := gw.Verify(context.Background(), "DS_1700000000000_abc")

	require.NoError(t, err)
	assert.Equal(t, "failed", v.Status)
	assert.False(t, v.Successful("DS_1700000000000_abc", 5000))
}

func TestFlutterwave_Identity(t *testing.T) {
	gw := NewFlutterwave("", "key", "", http.DefaultClient, zerolog.Nop())

	assert.Equal(t, "flutterwave", gw.Name())
	assert.True(t, gw.Live())
	assert.Equal(t, DefaultFlutterwaveURL, gw.api.baseURL)
	assert.Regexp(t, `^DS_\d+_[0-9a-z]+$`, gw.GenerateReference())
}
