// Package notify sends the post-purchase confirmation email.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"digistore/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// LinkValidDays is the download link lifetime quoted in the email.
const LinkValidDays = 30

// Dispatcher delivers order confirmations. A delivery failure never changes
// the order.
type Dispatcher interface {
	SendConfirmation(ctx context.Context, order *model.Order) error
}

// MailerConfig configures the mail API client.
type MailerConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
	BaseURL     string
	RatePerSec  float64
	Timeout     time.Duration
}

// Mailer posts confirmations to a SendGrid-compatible /mail/send endpoint.
type Mailer struct {
	cfg        MailerConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewMailer creates a mailer. Sends are paced to cfg.RatePerSec.
func NewMailer(cfg MailerConfig, logger zerolog.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Mailer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With().Str("component", "mailer").Logger(),
	}
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To      []address `json:"to"`
	Subject string    `json:"subject"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Content          []content         `json:"content"`
}

type confirmationData struct {
	CustomerName   string
	ProductName    string
	DownloadLinks  []string
	OrderReference string
	Amount         int64
	ValidDays      int
}

// Subject returns the confirmation subject line for productName.
func Subject(productName string) string {
	return fmt.Sprintf("Your %s is Ready for Download!", productName)
}

// RenderConfirmation renders the HTML body for order.
func RenderConfirmation(order *model.Order) (string, error) {
	var links []string
	if order.DownloadURL != "" {
		links = []string{order.DownloadURL}
	}

	var buf bytes.Buffer
	err := confirmationTemplate.Execute(&buf, confirmationData{
		CustomerName:   order.CustomerName,
		ProductName:    order.ProductName,
		DownloadLinks:  links,
		OrderReference: order.PaymentReference,
		Amount:         order.Amount,
		ValidDays:      LinkValidDays,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render confirmation: %w", err)
	}
	return buf.String(), nil
}

// SendConfirmation emails the download link for a completed order.
func (m *Mailer) SendConfirmation(ctx context.Context, order *model.Order) error {
	html, err := RenderConfirmation(order)
	if err != nil {
		return err
	}

	payload := mailRequest{
		Personalizations: []personalization{{
			To:      []address{{Email: order.CustomerEmail, Name: order.CustomerName}},
			Subject: Subject(order.ProductName),
		}},
		From:    address{Email: m.cfg.FromAddress, Name: m.cfg.FromName},
		Content: []content{{Type: "text/html", Value: html}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return &model.DeliveryError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/mail/send", bytes.NewReader(body))
	if err != nil {
		return &model.DeliveryError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Error().Err(err).Str("order_id", order.ID).Msg("mail API unreachable")
		return &model.DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.logger.Error().
			Int("status", resp.StatusCode).
			Str("order_id", order.ID).
			Msg("mail API rejected confirmation")
		return &model.DeliveryError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	m.logger.Info().Str("order_id", order.ID).Msg("confirmation email sent")
	return nil
}

// LogDispatcher logs confirmations instead of sending them.
type LogDispatcher struct {
	logger zerolog.Logger
}

// NewLogDispatcher returns a dispatcher used when no mail API key is configured.
func NewLogDispatcher(logger zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With().Str("component", "mailer").Logger()}
}

// SendConfirmation logs the confirmation that would have been sent.
func (d *LogDispatcher) SendConfirmation(_ context.Context, order *model.Order) error {
	d.logger.Info().
		Str("order_id", order.ID).
		Str("to", order.CustomerEmail).
		Str("subject", Subject(order.ProductName)).
		Msg("email delivery disabled, confirmation logged only")
	return nil
}
