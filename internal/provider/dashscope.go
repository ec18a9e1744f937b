package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/registry"
)

// DashScopeOptions configures the DashScope async task adapter.
type DashScopeOptions struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// DashScope talks to the DashScope asynchronous image synthesis API. It only
// supports polling; the task id returned on creation is queried until the
// task reaches a terminal status.
type DashScope struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type dashScopeTaskRequest struct {
	Model      string         `json:"model"`
	Input      map[string]any `json:"input"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type dashScopeTaskResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
	} `json:"output"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// dashScopeInputKeys are the option keys DashScope expects inside input
// rather than parameters.
var dashScopeInputKeys = map[string]bool{"prompt": true, "ref_img": true}

// NewDashScope constructs the adapter with sane defaults.
func NewDashScope(opts DashScopeOptions) (*DashScope, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	return &DashScope{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     ensureLogger(opts.Logger),
	}, nil
}

// Capabilities reports poll-only delivery.
func (d *DashScope) Capabilities() registry.Capabilities {
	return registry.Capabilities{SupportsPolling: true, DefaultStrategy: registry.StrategyPolling}
}

// StartGeneration creates an async task.
func (d *DashScope) StartGeneration(ctx context.Context, req StartRequest) (StartResult, error) {
	payload := dashScopeTaskRequest{
		Model:      req.ProviderModelID,
		Input:      map[string]any{},
		Parameters: map[string]any{},
	}
	for k, v := range req.Options {
		if dashScopeInputKeys[k] {
			payload.Input[k] = v
		} else {
			payload.Parameters[k] = v
		}
	}
	if len(payload.Parameters) == 0 {
		payload.Parameters = nil
	}
	endpoint := d.baseURL + "/services/aigc/text2image/image-synthesis"
	raw, err := d.do(ctx, http.MethodPost, endpoint, payload, true)
	if err != nil {
		return StartResult{}, err
	}
	var decoded dashScopeTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return StartResult{}, fmt.Errorf("dashscope: decode task response: %w", err)
	}
	if decoded.Code != "" {
		return StartResult{}, fmt.Errorf("dashscope: %s (%s)", decoded.Message, decoded.Code)
	}
	if decoded.Output.TaskID == "" {
		return StartResult{}, fmt.Errorf("dashscope: task response missing task id")
	}
	d.logger.Debug().
		Str("job_id", req.JobID).
		Str("task_id", decoded.Output.TaskID).
		Str("model", req.ProviderModelID).
		Msg("dashscope: task created")
	return StartResult{ProviderJobID: decoded.Output.TaskID, Strategy: registry.StrategyPolling}, nil
}

// GetRawJobResponse fetches the task state for the parser.
func (d *DashScope) GetRawJobResponse(ctx context.Context, _, providerJobID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/tasks/%s", d.baseURL, providerJobID)
	return d.do(ctx, http.MethodGet, endpoint, nil, false)
}

func (d *DashScope) do(ctx context.Context, method, endpoint string, payload any, async bool) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("dashscope: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("dashscope: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if async {
		httpReq.Header.Set("X-DashScope-Async", "enable")
	}
	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dashscope: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dashscope: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail dashScopeTaskResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return nil, fmt.Errorf("dashscope: %s (%s)", detail.Message, detail.Code)
		}
		return nil, fmt.Errorf("dashscope: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
