package payment

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"digistore/internal/model"
	"digistore/internal/security"

	"github.com/rs/zerolog"
)

// DefaultPaystackURL is the Paystack API root.
const DefaultPaystackURL = "https://api.paystack.co"

const koboPerNaira = 100

// Paystack is the live Paystack gateway. Amounts cross the wire in kobo.
type Paystack struct {
	api         apiClient
	redirectURL string
	refs        *security.ReferenceGenerator
}

var _ Gateway = (*Paystack)(nil)

// NewPaystack creates a Paystack gateway. An empty baseURL selects the
// production API.
func NewPaystack(baseURL, secretKey, redirectURL string, client *http.Client, logger zerolog.Logger) *Paystack {
	if baseURL == "" {
		baseURL = DefaultPaystackURL
	}
	return &Paystack{
		api: apiClient{
			provider:   "paystack",
			baseURL:    strings.TrimRight(baseURL, "/"),
			secretKey:  secretKey,
			httpClient: client,
			logger:     logger.With().Str("component", "paystack").Logger(),
		},
		redirectURL: redirectURL,
		refs:        security.NewReferenceGenerator(),
	}
}

func (p *Paystack) Name() string { return "paystack" }

func (p *Paystack) Live() bool { return true }

func (p *Paystack) GenerateReference() string {
	return p.refs.Generate(security.DefaultReferencePrefix)
}

type paystackInitRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// Initialize creates a transaction (POST /transaction/initialize).
func (p *Paystack) Initialize(ctx context.Context, req PaymentRequest) (*Initialization, error) {
	callback := req.RedirectURL
	if callback == "" {
		callback = p.redirectURL
	}
	currency := req.Currency
	if currency == "" {
		currency = Currency
	}

	body := paystackInitRequest{
		Email:       req.Customer.Email,
		Amount:      req.Amount * koboPerNaira,
		Currency:    currency,
		Reference:   req.Reference,
		CallbackURL: callback,
		Metadata: map[string]string{
			"product_id":     req.ProductID,
			"product_name":   req.ProductName,
			"customer_name":  req.Customer.Name,
			"customer_phone": req.Customer.Phone,
		},
	}

	var resp paystackInitResponse
	if err := p.api.do(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return nil, &model.GatewayError{Provider: p.Name(), StatusCode: http.StatusOK, Status: resp.Message}
	}

	p.api.logger.Info().
		Str("reference", req.Reference).
		Int64("amount", req.Amount).
		Msg("payment initialized")

	return &Initialization{Reference: req.Reference, RedirectLink: resp.Data.AuthorizationURL}, nil
}

// Verify looks a transaction up by reference (GET /transaction/verify/{reference}).
func (p *Paystack) Verify(ctx context.Context, reference string) (*Verification, error) {
	var resp paystackVerifyResponse
	if err := p.api.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, &model.GatewayError{Provider: p.Name(), StatusCode: http.StatusOK, Status: resp.Message}
	}

	status := strings.ToLower(resp.Data.Status)
	if status == "success" {
		status = VerifiedStatus
	}

	v := &Verification{
		TransactionID: strconv.FormatInt(resp.Data.ID, 10),
		Reference:     resp.Data.Reference,
		Amount:        resp.Data.Amount / koboPerNaira,
		Currency:      resp.Data.Currency,
		Status:        status,
		CustomerEmail: resp.Data.Customer.Email,
	}

	p.api.logger.Info().
		Str("transaction_id", v.TransactionID).
		Str("reference", v.Reference).
		Str("status", v.Status).
		Msg("payment verified")

	return v, nil
}
