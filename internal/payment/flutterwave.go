package payment

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"digistore/internal/model"
	"digistore/internal/security"

	"github.com/rs/zerolog"
)

// DefaultFlutterwaveURL is the Flutterwave v3 API root.
const DefaultFlutterwaveURL = "https://api.flutterwave.com/v3"

const (
	flutterwavePaymentOptions = "card,mobilemoney,ussd,banktransfer"
	storeTitle                = "DigiStore Nigeria"
	storeLogo                 = "https://digi-store-nigeria.vercel.app/logo.svg"
)

// Flutterwave is the live Flutterwave Standard gateway.
type Flutterwave struct {
	api         apiClient
	redirectURL string
	refs        *security.ReferenceGenerator
}

var _ Gateway = (*Flutterwave)(nil)

// NewFlutterwave creates a Flutterwave gateway. An empty baseURL selects the
// production API.
func NewFlutterwave(baseURL, secretKey, redirectURL string, client *http.Client, logger zerolog.Logger) *Flutterwave {
	if baseURL == "" {
		baseURL = DefaultFlutterwaveURL
	}
	return &Flutterwave{
		api: apiClient{
			provider:   "flutterwave",
			baseURL:    strings.TrimRight(baseURL, "/"),
			secretKey:  secretKey,
			httpClient: client,
			logger:     logger.With().Str("component", "flutterwave").Logger(),
		},
		redirectURL: redirectURL,
		refs:        security.NewReferenceGenerator(),
	}
}

func (f *Flutterwave) Name() string { return "flutterwave" }

func (f *Flutterwave) Live() bool { return true }

func (f *Flutterwave) GenerateReference() string {
	return f.refs.Generate(security.DefaultReferencePrefix)
}

type flwCustomer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Name        string `json:"name,omitempty"`
}

type flwPaymentRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url"`
	PaymentOptions string            `json:"payment_options"`
	Customer       flwCustomer       `json:"customer"`
	Customizations flwCustomizations `json:"customizations"`
	Meta           map[string]string `json:"meta,omitempty"`
}

type flwCustomizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
}

type flwPaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

type flwVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64       `json:"id"`
		TxRef    string      `json:"tx_ref"`
		FlwRef   string      `json:"flw_ref"`
		Amount   float64     `json:"amount"`
		Currency string      `json:"currency"`
		Status   string      `json:"status"`
		Customer flwCustomer `json:"customer"`
	} `json:"data"`
}

// Initialize creates a hosted payment link (POST /payments).
func (f *Flutterwave) Initialize(ctx context.Context, req PaymentRequest) (*Initialization, error) {
	redirect := req.RedirectURL
	if redirect == "" {
		redirect = f.redirectURL
	}
	currency := req.Currency
	if currency == "" {
		currency = Currency
	}

	body := flwPaymentRequest{
		TxRef:          req.Reference,
		Amount:         req.Amount,
		Currency:       currency,
		RedirectURL:    redirect,
		PaymentOptions: flutterwavePaymentOptions,
		Customer: flwCustomer{
			Email:       req.Customer.Email,
			PhoneNumber: req.Customer.Phone,
			Name:        req.Customer.Name,
		},
		Customizations: flwCustomizations{
			Title:       storeTitle,
			Description: "Payment for " + req.ProductName,
			Logo:        storeLogo,
		},
		Meta: map[string]string{
			"product_id":   req.ProductID,
			"product_name": req.ProductName,
		},
	}

	var resp flwPaymentResponse
	if err := f.api.do(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" || resp.Data.Link == "" {
		return nil, &model.GatewayError{Provider: f.Name(), StatusCode: http.StatusOK, Status: resp.Message}
	}

	f.api.logger.Info().
		Str("reference", req.Reference).
		Int64("amount", req.Amount).
		Msg("payment initialized")

	return &Initialization{Reference: req.Reference, RedirectLink: resp.Data.Link}, nil
}

// Verify looks a transaction up by its numeric Flutterwave id, or by tx_ref
// when given one of our references instead.
func (f *Flutterwave) Verify(ctx context.Context, transactionID string) (*Verification, error) {
	path := "/transactions/" + url.PathEscape(transactionID) + "/verify"
	if _, err := strconv.ParseInt(transactionID, 10, 64); err != nil {
		path = "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(transactionID)
	}

	var resp flwVerifyResponse
	if err := f.api.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, &model.GatewayError{Provider: f.Name(), StatusCode: http.StatusOK, Status: resp.Message}
	}

	v := &Verification{
		TransactionID: fmt.Sprintf("%d", resp.Data.ID),
		Reference:     resp.Data.TxRef,
		ProviderRef:   resp.Data.FlwRef,
		Amount:        int64(math.Floor(resp.Data.Amount)),
		Currency:      resp.Data.Currency,
		Status:        strings.ToLower(resp.Data.Status),
		CustomerEmail: resp.Data.Customer.Email,
	}

	f.api.logger.Info().
		Str("transaction_id", v.TransactionID).
		Str("reference", v.Reference).
		Str("status", v.Status).
		Msg("payment verified")

	return v, nil
}
