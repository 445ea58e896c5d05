package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"digistore/internal/checkout"
	"digistore/internal/model"
	"digistore/internal/payment"
	"digistore/internal/service"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// CheckoutHandler handles the customer-facing checkout flow.
type CheckoutHandler struct {
	service service.CheckoutService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// checkoutResponse wraps an attempt. Field errors from a rejected
// submission are reported alongside it.
type checkoutResponse struct {
	Attempt *checkout.Attempt `json:"attempt"`
}

// decode reads r's body, checks it against schema and unmarshals it into
// dst. It writes the error response itself and reports whether to continue.
func (h *CheckoutHandler) decode(w http.ResponseWriter, r *http.Request, schema gojsonschema.JSONLoader, dst interface{}) bool {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "request body too large or unreadable", h.logger)
		return false
	}

	fields, err := validateSchema(schema, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return false
	}
	if len(fields) > 0 {
		writeValidationError(w, fields, h.logger)
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return false
	}
	return true
}

// Create handles POST /api/checkout: it opens an attempt and submits the
// customer's details in one step.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if !h.decode(w, r, checkoutSchema, &req) {
		return
	}

	attempt, err := h.service.Start(r.Context(), req.ProductID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	submitted, err := h.service.Submit(r.Context(), attempt.ID, req.Customer())
	if err != nil {
		h.writeSubmitError(w, attempt.ID, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{Attempt: submitted})
}

// Submit handles POST /api/checkout/{id}/submit, resubmitting corrected details.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.CheckoutRequest
	if !h.decode(w, r, submitSchema, &req) {
		return
	}

	attempt, err := h.service.Submit(r.Context(), id, req.Customer())
	if err != nil {
		h.writeSubmitError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{Attempt: attempt})
}

// writeSubmitError includes the attempt ID so the client can resubmit.
func (h *CheckoutHandler) writeSubmitError(w http.ResponseWriter, attemptID string, err error) {
	w.Header().Set("X-Checkout-Attempt", attemptID)
	writeServiceError(w, err, h.logger)
}

// Get handles GET /api/checkout/{id}.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{Attempt: attempt})
}

// Confirm handles POST /api/checkout/{id}/confirm after the provider
// redirects back. An empty body verifies by reference.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, confirmSchema, &req) {
			return
		}
	}

	attempt, err := h.service.Confirm(r.Context(), r.PathValue("id"), req.TransactionID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{Attempt: attempt})
}

// callbackBody accepts a numeric or string transaction ID, as widgets
// send either.
type callbackBody struct {
	Status        string          `json:"status"`
	TransactionID json.RawMessage `json:"transactionId"`
}

// Callback handles POST /api/checkout/{id}/callback from the payment widget.
func (h *CheckoutHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackBody
	if !h.decode(w, r, callbackSchema, &req) {
		return
	}

	result := payment.ParseCallback(req.Status, rawID(req.TransactionID))
	attempt, err := h.service.HandleCallback(r.Context(), r.PathValue("id"), result)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{Attempt: attempt})
}

// Cancel handles POST /api/checkout/{id}/cancel.
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{Attempt: attempt})
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
