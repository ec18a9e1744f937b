package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/registry"
)

// ErrMissingAPIKey indicates an adapter was configured without credentials.
var ErrMissingAPIKey = errors.New("provider: api key is required")

// ReplicateOptions configures the Replicate adapter.
type ReplicateOptions struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Replicate talks to the Replicate predictions API.
type Replicate struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type replicateStartRequest struct {
	Input               map[string]any `json:"input"`
	Webhook             string         `json:"webhook,omitempty"`
	WebhookEventsFilter []string       `json:"webhook_events_filter,omitempty"`
}

type replicateStartResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  any    `json:"error,omitempty"`
}

type replicateErrorResponse struct {
	Detail string `json:"detail"`
}

// NewReplicate constructs the adapter with sane defaults.
func NewReplicate(opts ReplicateOptions) (*Replicate, error) {
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
		baseURL = "https://api.replicate.com/v1"
	}
	return &Replicate{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     ensureLogger(opts.Logger),
	}, nil
}

// Capabilities reports webhook-first async delivery.
func (r *Replicate) Capabilities() registry.Capabilities {
	return registry.Capabilities{
		SupportsWebhooks: true,
		SupportsPolling:  true,
		DefaultStrategy:  registry.StrategyWebhook,
	}
}

// StartGeneration creates a prediction. The model-scoped endpoint pins the
// latest version so no version id bookkeeping is needed.
func (r *Replicate) StartGeneration(ctx context.Context, req StartRequest) (StartResult, error) {
	payload := replicateStartRequest{Input: req.Options}
	strategy := registry.StrategyPolling
	if req.WebhookURL != "" {
		payload.Webhook = req.WebhookURL
		payload.WebhookEventsFilter = []string{"completed"}
		strategy = registry.StrategyWebhook
	}
	endpoint := fmt.Sprintf("%s/models/%s/predictions", r.baseURL, req.ProviderModelID)
	raw, err := r.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return StartResult{}, err
	}
	var decoded replicateStartResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return StartResult{}, fmt.Errorf("replicate: decode start response: %w", err)
	}
	if decoded.ID == "" {
		return StartResult{}, fmt.Errorf("replicate: start response missing prediction id")
	}
	r.logger.Debug().
		Str("job_id", req.JobID).
		Str("prediction_id", decoded.ID).
		Str("model", req.ProviderModelID).
		Msg("replicate: prediction started")
	return StartResult{ProviderJobID: decoded.ID, Strategy: strategy}, nil
}

// GetRawJobResponse fetches the prediction as-is for the parser.
func (r *Replicate) GetRawJobResponse(ctx context.Context, _, providerJobID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/predictions/%s", r.baseURL, providerJobID)
	return r.do(ctx, http.MethodGet, endpoint, nil)
}

func (r *Replicate) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("replicate: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+r.apiKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail replicateErrorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func ensureLogger(logger *infra.Logger) *infra.Logger {
	if logger != nil {
		return logger
	}
	discard := zerolog.New(io.Discard)
	l := infra.Logger(discard)
	return &l
}
