package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"digistore/internal/model"

	"github.com/rs/zerolog"
)

const maxErrorBody = 4 << 10

// apiClient is the bearer-authenticated JSON client shared by the live providers.
type apiClient struct {
	provider   string
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// do sends body as JSON and decodes a 2xx response into out. A non-2xx answer
// becomes a *model.GatewayError, a failed round trip a *model.NetworkError.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", c.provider, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", c.provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("method", method).
			Str("path", path).
			Msg("payment provider unreachable")
		return &model.NetworkError{Op: c.provider + " " + method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status := providerMessage(resp.Body)
		if status == "" {
			status = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("status", status).
			Str("path", path).
			Msg("payment provider rejected request")
		return &model.GatewayError{Provider: c.provider, StatusCode: resp.StatusCode, Status: status}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.provider, err)
	}
	return nil
}

// providerMessage extracts the "message" field both providers put in error bodies.
func providerMessage(r io.Reader) string {
	var body struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || json.Unmarshal(data, &body) != nil {
		return ""
	}
	return body.Message
}
