package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/printhausapp/printhaus/internal/services"
)

// Download exchanges a token for the purchased asset. Forbidden-class
// failures carry a specific reason; none of them consume a download use.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	token := mux.Vars(r)["token"]
	if token == "" {
		writeJSONError(w, http.StatusNotFound, "Download not found")
		return
	}

	asset, err := h.downloadService.Redeem(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrDownloadNotFound):
		writeJSONError(w, http.StatusNotFound, "Download not found")
		return
	case errors.Is(err, services.ErrOrderNotPaid):
		writeJSONError(w, http.StatusForbidden, "Order not paid")
		return
	case errors.Is(err, services.ErrDownloadExpired):
		writeJSONError(w, http.StatusForbidden, "Download link has expired")
		return
	case errors.Is(err, services.ErrDownloadExhausted):
		writeJSONError(w, http.StatusForbidden, "Download limit reached")
		return
	default:
		logger.Error("failed to redeem download", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Download failed")
		return
	}

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", asset.Filename))
	if _, err := w.Write(asset.Content); err != nil {
		logger.Error("failed to write download response", "error", err)
	}
}
