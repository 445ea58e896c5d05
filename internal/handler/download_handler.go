package handler

import (
	"net/http"

	"digistore/internal/service"

	"github.com/rs/zerolog"
)

// DownloadHandler redirects valid download links to the product file.
type DownloadHandler struct {
	service service.DownloadService
	logger  zerolog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(service service.DownloadService, logger zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{
		service: service,
		logger:  logger.With().Str("handler", "download").Logger(),
	}
}

// Get handles GET /api/downloads/{token}.
func (h *DownloadHandler) Get(w http.ResponseWriter, r *http.Request) {
	location, err := h.service.Resolve(r.Context(), r.PathValue("token"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, location, http.StatusFound)
}
