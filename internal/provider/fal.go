package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/registry"
)

// FalOptions configures the fal.ai queue adapter.
type FalOptions struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Fal talks to the fal.ai queue API. Submissions target the full endpoint id
// while status and result fetches use the owning application alias, so both
// spellings are derived from the model id.
type Fal struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type falStartResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type falErrorResponse struct {
	Detail any `json:"detail"`
}

type falStatusProbe struct {
	Status string `json:"status"`
}

// NewFal constructs the adapter with sane defaults.
func NewFal(opts FalOptions) (*Fal, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	return &Fal{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     ensureLogger(opts.Logger),
	}, nil
}

// Capabilities reports queue-based async delivery, polled by default.
func (f *Fal) Capabilities() registry.Capabilities {
	return registry.Capabilities{
		SupportsWebhooks: true,
		SupportsPolling:  true,
		DefaultStrategy:  registry.StrategyPolling,
	}
}

// StartGeneration submits the request to the queue.
func (f *Fal) StartGeneration(ctx context.Context, req StartRequest) (StartResult, error) {
	endpoint := fmt.Sprintf("%s/%s", f.baseURL, req.ProviderModelID)
	strategy := registry.StrategyPolling
	if req.WebhookURL != "" {
		endpoint += "?fal_webhook=" + url.QueryEscape(req.WebhookURL)
		strategy = registry.StrategyWebhook
	}
	raw, err := f.do(ctx, http.MethodPost, endpoint, req.Options)
	if err != nil {
		return StartResult{}, err
	}
	var decoded falStartResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return StartResult{}, fmt.Errorf("fal: decode start response: %w", err)
	}
	if decoded.RequestID == "" {
		return StartResult{}, fmt.Errorf("fal: start response missing request id")
	}
	f.logger.Debug().
		Str("job_id", req.JobID).
		Str("request_id", decoded.RequestID).
		Str("model", req.ProviderModelID).
		Msg("fal: request queued")
	return StartResult{ProviderJobID: decoded.RequestID, Strategy: strategy}, nil
}

// GetRawJobResponse returns the queue status, or the result body once the
// status reports completion, so one fetch path serves the whole lifecycle.
func (f *Fal) GetRawJobResponse(ctx context.Context, providerModelID, providerJobID string) ([]byte, error) {
	app := falAppAlias(providerModelID)
	statusURL := fmt.Sprintf("%s/%s/requests/%s/status", f.baseURL, app, providerJobID)
	raw, err := f.do(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, err
	}
	var probe falStatusProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("fal: decode status response: %w", err)
	}
	if !strings.EqualFold(probe.Status, "COMPLETED") {
		return raw, nil
	}
	resultURL := fmt.Sprintf("%s/%s/requests/%s", f.baseURL, app, providerJobID)
	return f.do(ctx, http.MethodGet, resultURL, nil)
}

func (f *Fal) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("fal: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("fal: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Key "+f.apiKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fal: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fal: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail falErrorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != nil {
			return nil, fmt.Errorf("fal: status %d: %v", resp.StatusCode, detail.Detail)
		}
		return nil, fmt.Errorf("fal: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// falAppAlias reduces an endpoint id like fal-ai/kling-video/v2.1/standard to
// the owning application (fal-ai/kling-video), which is what the queue's
// request routes are keyed by.
func falAppAlias(providerModelID string) string {
	parts := strings.Split(providerModelID, "/")
	if len(parts) <= 2 {
		return providerModelID
	}
	return strings.Join(parts[:2], "/")
}
