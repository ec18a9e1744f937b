package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/middleware"
	"github.com/synthome-dev/synthome/internal/registry"
	"github.com/synthome-dev/synthome/internal/store"
)

const maxPlanBytes = 1 << 20

// executeOptions is the options envelope of the submit contract.
type executeOptions struct {
	Webhook         string            `json:"webhook,omitempty"`
	WebhookSecret   string            `json:"webhookSecret,omitempty"`
	BaseExecutionID string            `json:"baseExecutionId,omitempty"`
	ProviderAPIKeys map[string]string `json:"providerApiKeys,omitempty"`
}

type executeRequest struct {
	ExecutionPlan domain.ExecutionPlan `json:"executionPlan"`
	Options       executeOptions       `json:"options"`
}

type executeResponse struct {
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
	TotalJobs   int    `json:"totalJobs"`
}

// Execute accepts a compiled execution plan, persists it and acknowledges.
// The orchestrator's scan loop picks the execution up; nothing runs inline
// with the request.
func (a *App) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, maxPlanBytes, &req); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	plan := req.ExecutionPlan
	if plan.BaseExecutionID == "" {
		plan.BaseExecutionID = req.Options.BaseExecutionID
	}
	if err := plan.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.checkModels(plan.Jobs); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	org := strings.TrimSpace(r.Header.Get(middleware.OrganizationHeader))
	keys, err := a.resolveProviderKeys(r, org, req.Options.ProviderAPIKeys)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "credential lookup failed")
		return
	}

	exec := &domain.Execution{
		ID:              uuid.NewString(),
		Status:          domain.ExecutionStatusPending,
		OrganizationID:  org,
		BaseExecutionID: plan.BaseExecutionID,
		ProviderAPIKeys: keys,
		WebhookURL:      req.Options.Webhook,
		WebhookSecret:   req.Options.WebhookSecret,
	}
	if err := a.Store.CreateExecution(r.Context(), exec, plan.Jobs); err != nil {
		a.Logger.Error().Err(err).Msg("httpapi: persist execution failed")
		a.error(w, http.StatusInternalServerError, "failed to persist execution")
		return
	}
	if a.Metrics != nil {
		a.Metrics.ExecutionsStarted.Inc()
	}
	a.Logger.Info().
		Str("execution_id", exec.ID).
		Int("jobs", len(plan.Jobs)).
		Str("organization", org).
		Msg("httpapi: execution accepted")

	a.json(w, http.StatusAccepted, executeResponse{
		ExecutionID: exec.ID,
		Status:      string(exec.Status),
		TotalJobs:   len(plan.Jobs),
	})
}

// checkModels rejects plans naming unregistered models up front, so the
// caller learns at submission rather than from a failed job.
func (a *App) checkModels(jobs []domain.Job) error {
	for _, j := range jobs {
		modelID, _ := j.Params["model"].(string)
		if modelID == "" {
			if _, ok := a.Registry.DefaultModel(j.Type); !ok {
				return domain.NewError(domain.KindValidation, j.ID, "no model registered for job type %s", j.Type)
			}
			continue
		}
		if _, ok := a.Registry.Lookup(modelID); !ok {
			return domain.NewError(domain.KindValidation, j.ID, "unknown model %q", modelID)
		}
	}
	return nil
}

// resolveProviderKeys merges explicit keys with the organization's stored
// integration tokens. Explicit keys win.
func (a *App) resolveProviderKeys(r *http.Request, org string, explicit map[string]string) (map[string]string, error) {
	keys := make(map[string]string, len(explicit))
	for provider, key := range explicit {
		keys[provider] = key
	}
	if a.Credentials == nil || org == "" {
		return keys, nil
	}
	for _, provider := range []string{
		registry.ProviderReplicate, registry.ProviderFal, registry.ProviderDashScope,
		registry.ProviderGemini, registry.ProviderElevenLabs,
	} {
		if keys[provider] != "" {
			continue
		}
		token, err := a.Credentials.Token(r.Context(), org, provider)
		if err != nil {
			return nil, err
		}
		if token != "" {
			keys[provider] = token
		}
	}
	return keys, nil
}

// Status reports execution progress derived from the job set.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executionID")
	exec, err := a.Store.GetExecution(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.error(w, http.StatusNotFound, "execution not found")
			return
		}
		a.Logger.Error().Err(err).Str("execution_id", id).Msg("httpapi: load execution failed")
		a.error(w, http.StatusInternalServerError, "failed to load execution")
		return
	}
	jobs, err := a.Store.ListJobs(r.Context(), id)
	if err != nil {
		a.Logger.Error().Err(err).Str("execution_id", id).Msg("httpapi: load jobs failed")
		a.error(w, http.StatusInternalServerError, "failed to load jobs")
		return
	}
	a.json(w, http.StatusOK, buildProgress(exec, jobs))
}

func buildProgress(exec *domain.Execution, jobs []domain.Job) domain.ExecutionProgress {
	progress := domain.ExecutionProgress{
		Status:    exec.Status,
		TotalJobs: len(jobs),
		Result:    exec.Result,
		Error:     exec.ErrorMessage,
	}
	for _, j := range jobs {
		switch j.Status {
		case domain.JobStatusCompleted:
			progress.CompletedJobs++
		case domain.JobStatusProcessing:
			if progress.CurrentJob == "" {
				progress.CurrentJob = j.ID
			}
		}
	}
	switch {
	case exec.Status == domain.ExecutionStatusCompleted:
		progress.Progress = 100
	case len(jobs) > 0:
		progress.Progress = progress.CompletedJobs * 100 / len(jobs)
	}
	return progress
}
