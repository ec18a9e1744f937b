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

// GeminiOptions configures the Gemini image runner.
type GeminiOptions struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Gemini performs blocking generateContent calls. Responses carry the image
// inline as base64, so outputs are data URIs that the caller must persist to
// durable storage before surfacing.
type Gemini struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewGemini constructs the runner with sane defaults.
func NewGemini(opts GeminiOptions) (*Gemini, error) {
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
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Gemini{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     ensureLogger(opts.Logger),
	}, nil
}

// Generate invokes generateContent once and normalizes the outcome.
func (g *Gemini) Generate(ctx context.Context, req StartRequest) (registry.NormalizedResponse, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildGeminiPrompt(req.Options)}},
		}},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(req.ProviderModelID))
	body, err := json.Marshal(payload)
	if err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("gemini: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("gemini: build request: %w", err)
	}
	q := httpReq.URL.Query()
	q.Set("key", g.apiKey)
	httpReq.URL.RawQuery = q.Encode()
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("gemini: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr geminiError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return registry.NormalizedResponse{}, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return registry.NormalizedResponse{}, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return registry.NormalizedResponse{}, fmt.Errorf("gemini: decode response: %w", err)
	}

	var outputs []string
	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				mime := part.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				outputs = append(outputs, fmt.Sprintf("data:%s;base64,%s", mime, part.InlineData.Data))
			}
		}
	}
	g.logger.Debug().
		Str("job_id", req.JobID).
		Str("model", req.ProviderModelID).
		Int("outputs", len(outputs)).
		Msg("gemini: generation finished")
	if len(outputs) == 0 {
		return registry.NormalizedResponse{
			Status: "failed",
			Error:  "gemini: response carried no image data",
		}, nil
	}
	return registry.NormalizedResponse{Status: "completed", Outputs: outputs}, nil
}

// buildGeminiPrompt folds the option map into a single text part, since the
// generateContent surface takes free text rather than structured parameters.
func buildGeminiPrompt(opts map[string]any) string {
	var b strings.Builder
	if prompt, _ := opts["prompt"].(string); prompt != "" {
		b.WriteString(prompt)
	}
	if aspect, _ := opts["aspect_ratio"].(string); aspect != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Aspect ratio: ")
		b.WriteString(aspect)
	}
	if image, _ := opts["image"].(string); image != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Reference image: ")
		b.WriteString(image)
	}
	if b.Len() == 0 {
		b.WriteString("Generate an image")
	}
	return b.String()
}
