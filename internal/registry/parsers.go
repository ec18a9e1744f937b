package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synthome-dev/synthome/internal/domain"
)

// NormalizedResponse is the provider-agnostic view of a webhook or polling
// payload.
type NormalizedResponse struct {
	Status   domain.JobStatus
	Outputs  []string
	Error    string
	Metadata map[string]any
}

// Parser normalizes one provider's raw payload.
type Parser func(raw []byte) (NormalizedResponse, error)

var (
	inFlightStatuses = map[string]bool{
		"starting": true, "processing": true, "queued": true, "pending": true,
		"running": true, "in_progress": true, "in_queue": true,
	}
	terminalFailureStatuses = map[string]bool{
		"failed": true, "canceled": true, "cancelled": true, "error": true,
	}
	successStatuses = map[string]bool{
		"succeeded": true, "completed": true, "success": true,
	}
)

// normalize applies the shared vocabulary rules. Success with no extractable
// output is an explicit failure, never a silent empty success.
func normalize(status string, outputs []string, errMsg string, meta map[string]any) (NormalizedResponse, error) {
	key := strings.ToLower(strings.TrimSpace(status))
	switch {
	case terminalFailureStatuses[key]:
		if errMsg == "" {
			errMsg = fmt.Sprintf("provider reported %s", key)
		}
		return NormalizedResponse{Status: domain.JobStatusFailed, Error: errMsg, Metadata: meta}, nil
	case successStatuses[key]:
		if len(outputs) == 0 {
			return NormalizedResponse{
				Status:   domain.JobStatusFailed,
				Error:    fmt.Sprintf("provider reported %s but returned no output", key),
				Metadata: meta,
			}, nil
		}
		return NormalizedResponse{Status: domain.JobStatusCompleted, Outputs: outputs, Metadata: meta}, nil
	case inFlightStatuses[key]:
		return NormalizedResponse{Status: domain.JobStatusProcessing, Metadata: meta}, nil
	default:
		return NormalizedResponse{}, fmt.Errorf("unrecognized provider status %q", status)
	}
}

type replicatePayload struct {
	Status string `json:"status"`
	Output any    `json:"output"`
	Error  any    `json:"error"`
	Logs   string `json:"logs,omitempty"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

// ParseReplicate handles Replicate prediction payloads. Output is either a
// single URL or an array of URLs.
func ParseReplicate(raw []byte) (NormalizedResponse, error) {
	var p replicatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return NormalizedResponse{}, fmt.Errorf("decode replicate payload: %w", err)
	}
	var outputs []string
	switch out := p.Output.(type) {
	case string:
		if out != "" {
			outputs = append(outputs, out)
		}
	case []any:
		for _, v := range out {
			if s, ok := v.(string); ok && s != "" {
				outputs = append(outputs, s)
			}
		}
	}
	errMsg := ""
	if p.Error != nil {
		errMsg = fmt.Sprintf("%v", p.Error)
	}
	meta := map[string]any{}
	if len(p.Metrics) > 0 {
		meta["metrics"] = p.Metrics
	}
	return normalize(p.Status, outputs, errMsg, meta)
}

type falPayload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	QueuePosition *int `json:"queue_position,omitempty"`
	Payload struct {
		Video  *falFile  `json:"video,omitempty"`
		Audio  *falFile  `json:"audio,omitempty"`
		Image  *falFile  `json:"image,omitempty"`
		Images []falFile `json:"images,omitempty"`
	} `json:"payload"`
	// Completed result fetches return the file fields at the top level.
	Video  *falFile  `json:"video,omitempty"`
	Audio  *falFile  `json:"audio,omitempty"`
	Image  *falFile  `json:"image,omitempty"`
	Images []falFile `json:"images,omitempty"`
}

type falFile struct {
	URL string `json:"url"`
}

// ParseFal handles fal.ai queue payloads (IN_QUEUE / IN_PROGRESS /
// COMPLETED) and completed result bodies.
func ParseFal(raw []byte) (NormalizedResponse, error) {
	var p falPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return NormalizedResponse{}, fmt.Errorf("decode fal payload: %w", err)
	}
	var outputs []string
	for _, f := range []*falFile{p.Payload.Video, p.Payload.Audio, p.Payload.Image, p.Video, p.Audio, p.Image} {
		if f != nil && f.URL != "" {
			outputs = append(outputs, f.URL)
		}
	}
	for _, f := range append(p.Payload.Images, p.Images...) {
		if f.URL != "" {
			outputs = append(outputs, f.URL)
		}
	}
	// A result body has no status field; outputs alone mean completion.
	status := p.Status
	if status == "" && len(outputs) > 0 {
		status = "COMPLETED"
	}
	meta := map[string]any{}
	if p.QueuePosition != nil {
		meta["queue_position"] = *p.QueuePosition
	}
	return normalize(status, outputs, p.Error, meta)
}

type dashScopePayload struct {
	Output struct {
		TaskStatus string `json:"task_status"`
		Results    []struct {
			URL string `json:"url"`
		} `json:"results,omitempty"`
		Message string `json:"message,omitempty"`
		Code    string `json:"code,omitempty"`
	} `json:"output"`
	Usage map[string]any `json:"usage,omitempty"`
}

// ParseDashScope handles DashScope async task payloads (PENDING / RUNNING /
// SUCCEEDED / FAILED).
func ParseDashScope(raw []byte) (NormalizedResponse, error) {
	var p dashScopePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return NormalizedResponse{}, fmt.Errorf("decode dashscope payload: %w", err)
	}
	var outputs []string
	for _, r := range p.Output.Results {
		if r.URL != "" {
			outputs = append(outputs, r.URL)
		}
	}
	errMsg := p.Output.Message
	if errMsg == "" && p.Output.Code != "" {
		errMsg = p.Output.Code
	}
	meta := map[string]any{}
	if len(p.Usage) > 0 {
		meta["usage"] = p.Usage
	}
	return normalize(p.Output.TaskStatus, outputs, errMsg, meta)
}

// ParseNormalized decodes a payload already in normalized shape. Synchronous
// adapters cache their results in this form so the uniform status path needs
// no provider-specific handling.
func ParseNormalized(raw []byte) (NormalizedResponse, error) {
	var p struct {
		Status  string         `json:"status"`
		Outputs []string       `json:"outputs,omitempty"`
		Error   string         `json:"error,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return NormalizedResponse{}, fmt.Errorf("decode normalized payload: %w", err)
	}
	return normalize(p.Status, p.Outputs, p.Error, p.Metadata)
}
