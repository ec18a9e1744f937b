package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synthome-dev/synthome/internal/store"
)

const maxWebhookBytes = 4 << 20

// ProviderWebhook receives a completion callback from an upstream provider.
// The raw body is handed to the orchestrator unparsed; the model's own
// vocabulary decides what it means. Replays are harmless because job
// settlement is idempotent.
func (a *App) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionID")
	jobID := chi.URLParam(r, "jobID")

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := a.Callback.HandleProviderCallback(r.Context(), executionID, jobID, raw); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.error(w, http.StatusNotFound, "unknown execution or job")
			return
		}
		a.Logger.Error().Err(err).
			Str("execution_id", executionID).
			Str("job_id", jobID).
			Msg("httpapi: webhook processing failed")
		a.error(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "received"})
}
