package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"digistore/internal/model"

	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Str("code", code).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeValidationError reports every failing field.
func writeValidationError(w http.ResponseWriter, fields map[string][]string, logger zerolog.Logger) {
	logger.Debug().Int("fields", len(fields)).Msg("validation failed")
	writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
		Error:   model.ErrCodeValidation,
		Message: "validation failed",
		Fields:  fields,
	})
}

// writeServiceError maps a service error onto a status code.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var (
		verr   *model.ValidationError
		domain *model.DomainError
		gwErr  *model.GatewayError
		netErr *model.NetworkError
	)

	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr.Fields, logger)
	case errors.As(err, &domain):
		writeError(w, domainStatus(domain), domain.Code, domain.Message, logger)
	case errors.As(err, &gwErr):
		writeError(w, http.StatusBadGateway, model.ErrCodeGateway, "payment provider rejected the request", logger)
	case errors.As(err, &netErr):
		writeError(w, http.StatusServiceUnavailable, model.ErrCodeNetwork, "payment provider unavailable, please try again", logger)
	default:
		logger.Error().Err(err).Msg("unexpected service error")
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
	}
}

func domainStatus(err *model.DomainError) int {
	switch err.Code {
	case model.ErrCodeProductNotFound, model.ErrCodeOrderNotFound, model.ErrCodeAttemptNotFound, model.ErrCodeInvalidDownloadToken:
		return http.StatusNotFound
	case model.ErrCodeDuplicateOrder, model.ErrCodeInvalidStatusTransition, model.ErrCodeInvalidAttemptState:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodePaymentNotVerified:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}
