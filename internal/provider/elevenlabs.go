package provider

import (
	"bytes"
	"context"
	"encoding/base64"
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

// ElevenLabsOptions configures the ElevenLabs text-to-speech runner.
type ElevenLabsOptions struct {
	APIKey         string
	BaseURL        string
	DefaultVoiceID string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// ElevenLabs performs blocking text-to-speech calls. The API returns raw
// audio bytes, so outputs are data URIs that the caller must persist to
// durable storage before surfacing.
type ElevenLabs struct {
	apiKey         string
	baseURL        string
	defaultVoiceID string
	httpClient     *http.Client
	logger         *infra.Logger
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
	Seed    int    `json:"seed,omitempty"`
}

type elevenLabsError struct {
	Detail struct {
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"detail"`
}

// NewElevenLabs constructs the runner with sane defaults.
func NewElevenLabs(opts ElevenLabsOptions) (*ElevenLabs, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	voiceID := strings.TrimSpace(opts.DefaultVoiceID)
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	return &ElevenLabs{
		apiKey:         apiKey,
		baseURL:        baseURL,
		defaultVoiceID: voiceID,
		httpClient:     httpClient,
		logger:         ensureLogger(opts.Logger),
	}, nil
}

// Generate synthesizes speech once and normalizes the outcome.
func (e *ElevenLabs) Generate(ctx context.Context, req StartRequest) (registry.NormalizedResponse, error) {
	text, _ := req.Options["text"].(string)
	if strings.TrimSpace(text) == "" {
		return registry.NormalizedResponse{}, fmt.Errorf("elevenlabs: text is required")
	}
	voiceID := e.defaultVoiceID
	if v, _ := req.Options["voice_id"].(string); v != "" {
		voiceID = v
	}
	payload := elevenLabsRequest{Text: text, ModelID: req.ProviderModelID}
	switch seed := req.Options["seed"].(type) {
	case int:
		payload.Seed = seed
	case float64:
		payload.Seed = int(seed)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("elevenlabs: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s", e.baseURL, url.PathEscape(voiceID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail elevenLabsError
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail.Message != "" {
			return registry.NormalizedResponse{}, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, detail.Detail.Message)
		}
		return registry.NormalizedResponse{}, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if len(raw) == 0 {
		return registry.NormalizedResponse{
			Status: "failed",
			Error:  "elevenlabs: response carried no audio data",
		}, nil
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	e.logger.Debug().
		Str("job_id", req.JobID).
		Str("voice_id", voiceID).
		Int("bytes", len(raw)).
		Msg("elevenlabs: speech synthesized")
	return registry.NormalizedResponse{
		Status:  "completed",
		Outputs: []string{fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(raw))},
	}, nil
}
