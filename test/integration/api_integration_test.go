package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"digistore/internal/checkout"
	"digistore/internal/model"
	"digistore/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attemptEnvelope struct {
	Attempt checkout.Attempt `json:"attempt"`
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeAttempt(t *testing.T, resp *http.Response) checkout.Attempt {
	t.Helper()
	defer resp.Body.Close()
	var env attemptEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Attempt
}

func adminGet(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

var checkoutBody = map[string]string{
	"productId":     "51",
	"customerName":  "Ada Obi",
	"customerEmail": "ada@example.com",
	"customerPhone": "08012345678",
}

func runPurchase(t *testing.T, srv *TestServer) {
	// Start checkout
	resp := postJSON(t, srv.URL+"/api/checkout", checkoutBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	attempt := decodeAttempt(t, resp)
	require.Equal(t, checkout.StateAwaitingPayment, attempt.State)
	require.NotEmpty(t, attempt.Reference)
	assert.Contains(t, attempt.RedirectLink, "tx_ref="+attempt.Reference)

	// Confirm with the demo transaction id
	resp = postJSON(t, srv.URL+"/api/checkout/"+attempt.ID+"/confirm", map[string]string{"transactionId": attempt.Reference})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decodeAttempt(t, resp)
	require.Equal(t, checkout.StateCompleted, done.State)
	require.NotEmpty(t, done.DownloadURL)
	assert.Equal(t, attempt.Reference, done.OrderID)

	// Order is recorded as completed
	resp = adminGet(t, srv.URL+"/api/orders/"+done.OrderID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var order model.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	resp.Body.Close()
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	assert.Equal(t, int64(5000), order.Amount)
	assert.Equal(t, done.DownloadURL, order.DownloadURL)

	// Download link redirects to the product file
	resp, err := NoRedirectClient().Get(done.DownloadURL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, filesBaseURL+"/products/51.zip", resp.Header.Get("Location"))

	// Stats count the sale
	resp = adminGet(t, srv.URL+"/api/orders/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.OrderStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, int64(5000), stats.TotalRevenue)
	assert.Equal(t, 1, stats.CompletedOrderCount)
}

func TestPurchaseFlow_SQLite(t *testing.T) {
	srv := SetupTestServer(t, OpenSQLiteRepository(t))
	runPurchase(t, srv)
}

func TestPurchaseFlow_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	srv := SetupTestServer(t, repository.NewOrderRepository(testDB.Pool, zerolog.Nop()))
	runPurchase(t, srv)
}

func TestCheckoutAPI_Integration(t *testing.T) {
	srv := SetupTestServer(t, repository.NewMemoryOrderRepository(zerolog.Nop()))

	t.Run("Invalid details then resubmit", func(t *testing.T) {
		body := map[string]string{
			"productId":     "51",
			"customerName":  "A",
			"customerEmail": "not-an-email",
			"customerPhone": "12345",
		}
		resp := postJSON(t, srv.URL+"/api/checkout", body)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		attemptID := resp.Header.Get("X-Checkout-Attempt")
		require.NotEmpty(t, attemptID)

		var errResp model.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		assert.Contains(t, errResp.Fields, "customerName")
		assert.Contains(t, errResp.Fields, "customerEmail")
		assert.Contains(t, errResp.Fields, "customerPhone")

		fixed := map[string]string{
			"customerName":  "Ada Obi",
			"customerEmail": "ada@example.com",
			"customerPhone": "+2348012345678",
		}
		resp = postJSON(t, srv.URL+"/api/checkout/"+attemptID+"/submit", fixed)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, checkout.StateAwaitingPayment, decodeAttempt(t, resp).State)
	})

	t.Run("Cancel creates no order", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/checkout", checkoutBody)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		attempt := decodeAttempt(t, resp)

		resp = postJSON(t, srv.URL+"/api/checkout/"+attempt.ID+"/cancel", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, checkout.StateCancelled, decodeAttempt(t, resp).State)

		order, err := srv.Ledger.GetOrder(context.Background(), attempt.Reference)
		require.NoError(t, err)
		assert.Nil(t, order)

		resp = postJSON(t, srv.URL+"/api/checkout/"+attempt.ID+"/confirm", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Widget callback completes order", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/checkout", checkoutBody)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		attempt := decodeAttempt(t, resp)

		resp = postJSON(t, srv.URL+"/api/checkout/"+attempt.ID+"/callback", map[string]string{
			"status":        "successful",
			"transactionId": attempt.Reference,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, checkout.StateCompleted, decodeAttempt(t, resp).State)
	})

	t.Run("Unknown product", func(t *testing.T) {
		body := map[string]string{}
		for k, v := range checkoutBody {
			body[k] = v
		}
		body["productId"] = "does-not-exist"
		resp := postJSON(t, srv.URL+"/api/checkout", body)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Tampered download token", func(t *testing.T) {
		resp, err := NoRedirectClient().Get(srv.URL + "/api/downloads/not-a-token")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Orders require API key", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/orders")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestProductAPI_Integration(t *testing.T) {
	srv := SetupTestServer(t, repository.NewMemoryOrderRepository(zerolog.Nop()))

	resp, err := http.Get(srv.URL + "/api/products?limit=5&offset=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []model.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	assert.Len(t, products, 5)

	resp2, err := http.Get(srv.URL + "/api/products/51")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
