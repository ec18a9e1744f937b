// Package httpapi exposes the engine over HTTP: plan submission, execution
// status, inbound provider webhooks and operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/synthome-dev/synthome/internal/credentials"
	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/metrics"
	"github.com/synthome-dev/synthome/internal/registry"
	"github.com/synthome-dev/synthome/internal/store"
)

// ProviderCallback is the orchestrator surface the webhook route needs.
type ProviderCallback interface {
	HandleProviderCallback(ctx context.Context, executionID, jobID string, raw []byte) error
}

// App bundles the handler dependencies.
type App struct {
	Store       store.Store
	Registry    *registry.Registry
	Callback    ProviderCallback
	Credentials credentials.Store
	Metrics     *metrics.Metrics
	Logger      infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

// decodeJSON reads at most maxBytes of the body into v and rejects trailing
// garbage.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
