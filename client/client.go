// Package client is the Go handle for a running engine: it submits compiled
// execution plans over HTTP and tracks them to completion.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// OrganizationHeader identifies the calling organization on every request.
const OrganizationHeader = "X-Synthome-Organization"

const defaultPollInterval = 2500 * time.Millisecond

// Job mirrors one entry of the wire-format execution plan.
type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Params    map[string]any `json:"params"`
	DependsOn []string       `json:"dependsOn,omitempty"`
	Output    string         `json:"output"`
}

// Plan is the flat, dependency-annotated job list the engine executes.
type Plan struct {
	Jobs            []Job  `json:"jobs"`
	BaseExecutionID string `json:"baseExecutionId,omitempty"`
}

// Config carries per-submission options.
type Config struct {
	// ProviderAPIKeys override the engine's stored credentials per provider.
	ProviderAPIKeys map[string]string
	// WebhookURL makes Execute return right after acknowledgment; the engine
	// calls back when the execution reaches a terminal state.
	WebhookURL    string
	WebhookSecret string
	// OnProgress, when set, is invoked on every status poll.
	OnProgress func(Progress)
}

// Progress is one status snapshot.
type Progress struct {
	Status        string  `json:"status"`
	Progress      int     `json:"progress"`
	TotalJobs     int     `json:"totalJobs"`
	CompletedJobs int     `json:"completedJobs"`
	CurrentJob    string  `json:"currentJob,omitempty"`
	Result        *Result `json:"result,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Result is the normalized media output of a completed execution.
type Result struct {
	Type     string  `json:"type"`
	URL      string  `json:"url"`
	MimeType string  `json:"mimeType,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
}

// Handle identifies a submitted execution.
type Handle struct {
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
	TotalJobs   int    `json:"totalJobs"`
}

// Options configures a Client.
type Options struct {
	// BaseURL of the engine, e.g. "https://engine.example".
	BaseURL string
	// Organization is sent on every request when set.
	Organization string
	HTTPClient   *http.Client
	PollInterval time.Duration
	Logger       *zerolog.Logger
}

type Client struct {
	baseURL      string
	organization string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       zerolog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		organization: opts.Organization,
		httpClient:   httpClient,
		pollInterval: interval,
		logger:       logger,
	}, nil
}

type submitOptions struct {
	Webhook         string            `json:"webhook,omitempty"`
	WebhookSecret   string            `json:"webhookSecret,omitempty"`
	BaseExecutionID string            `json:"baseExecutionId,omitempty"`
	ProviderAPIKeys map[string]string `json:"providerApiKeys,omitempty"`
}

type submitRequest struct {
	ExecutionPlan Plan          `json:"executionPlan"`
	Options       submitOptions `json:"options"`
}

// Submit posts the plan and returns as soon as the engine acknowledges it.
func (c *Client) Submit(ctx context.Context, plan Plan, cfg Config) (*Handle, error) {
	body, err := json.Marshal(submitRequest{
		ExecutionPlan: plan,
		Options: submitOptions{
			Webhook:         cfg.WebhookURL,
			WebhookSecret:   cfg.WebhookSecret,
			BaseExecutionID: plan.BaseExecutionID,
			ProviderAPIKeys: cfg.ProviderAPIKeys,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("client: encode plan: %w", err)
	}

	var handle Handle
	if err := c.do(ctx, http.MethodPost, "/v1/execute", bytes.NewReader(body), &handle); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("execution_id", handle.ExecutionID).
		Int("jobs", handle.TotalJobs).
		Msg("client: execution submitted")
	return &handle, nil
}

// Status fetches one progress snapshot.
func (c *Client) Status(ctx context.Context, executionID string) (*Progress, error) {
	var progress Progress
	if err := c.do(ctx, http.MethodGet, "/v1/executions/"+executionID+"/status", nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// Execute submits the plan and, unless a webhook URL is configured, polls
// until the execution reaches a terminal state. With a webhook URL the handle
// is returned immediately and the engine reports completion out of band.
func (c *Client) Execute(ctx context.Context, plan Plan, cfg Config) (*Handle, *Result, error) {
	handle, err := c.Submit(ctx, plan, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.WebhookURL != "" {
		return handle, nil, nil
	}

	result, err := c.Wait(ctx, handle.ExecutionID, cfg.OnProgress)
	if err != nil {
		return handle, nil, err
	}
	return handle, result, nil
}

// Wait polls the status endpoint until the execution completes or fails.
func (c *Client) Wait(ctx context.Context, executionID string, onProgress func(Progress)) (*Result, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		progress, err := c.Status(ctx, executionID)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(*progress)
		}
		switch progress.Status {
		case "completed":
			return progress.Result, nil
		case "failed":
			return nil, fmt.Errorf("client: execution %s failed: %s", executionID, progress.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.organization != "" {
		req.Header.Set(OrganizationHeader, c.organization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("client: %s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("client: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
