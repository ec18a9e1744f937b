package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/registry"
)

// settleJob applies a terminal normalized response to the store. The
// conditional transitions make it safe to call from both the poll loop and
// the webhook route for the same job.
func (o *Orchestrator) settleJob(ctx context.Context, exec *domain.Execution, job *domain.Job, info registry.ModelInfo, resp registry.NormalizedResponse) error {
	switch resp.Status {
	case domain.JobStatusFailed:
		won, err := o.store.FailJob(ctx, exec.ID, job.ID, resp.Error)
		if err != nil {
			return domain.WrapError(domain.KindProvider, job.ID, err, "persist job failure")
		}
		if won {
			if o.metrics != nil {
				o.metrics.JobsFailed.WithLabelValues(string(job.Type), info.Provider).Inc()
			}
			o.logger.Warn().
				Str("execution_id", exec.ID).
				Str("job_id", job.ID).
				Str("reason", resp.Error).
				Msg("orchestrator: provider reported failure")
		}
		return nil

	case domain.JobStatusCompleted:
		output, err := o.materialize(ctx, exec.ID, job.ID, info, resp.Outputs[0])
		if err != nil {
			return err
		}
		won, err := o.store.CompleteJob(ctx, exec.ID, job.ID, output)
		if err != nil {
			return domain.WrapError(domain.KindProvider, job.ID, err, "persist job result")
		}
		if won {
			if o.metrics != nil {
				o.metrics.JobsCompleted.WithLabelValues(string(job.Type), info.Provider).Inc()
			}
			if exec.OrganizationID != "" {
				if err := o.usage.RecordJob(ctx, exec.OrganizationID, info.MediaType); err != nil {
					o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("orchestrator: usage record failed")
				}
			}
			o.logger.Info().
				Str("execution_id", exec.ID).
				Str("job_id", job.ID).
				Str("url", output.URL).
				Msg("orchestrator: job completed")
		}
		return nil

	default:
		return domain.NewError(domain.KindProvider, job.ID, "settle called with non-terminal status %s", resp.Status)
	}
}

// materialize turns a provider output reference into the stored MediaOutput.
// Inline data URIs are uploaded to durable storage first; completed jobs
// never surface inline payloads.
func (o *Orchestrator) materialize(ctx context.Context, executionID, jobID string, info registry.ModelInfo, output string) (*domain.MediaOutput, error) {
	if strings.HasPrefix(output, "data:") {
		return o.uploadInline(ctx, executionID, jobID, info, output)
	}
	return &domain.MediaOutput{
		Type:     info.MediaType,
		URL:      output,
		MimeType: mimeFromURL(output, info.MediaType),
	}, nil
}

func (o *Orchestrator) uploadInline(ctx context.Context, executionID, jobID string, info registry.ModelInfo, dataURI string) (*domain.MediaOutput, error) {
	if o.media == nil {
		return nil, domain.NewError(domain.KindUpload, jobID, "inline payload received but no storage configured")
	}
	mime, data, err := decodeDataURI(dataURI)
	if err != nil {
		return nil, domain.WrapError(domain.KindUpload, jobID, err, "decode inline payload")
	}
	key := fmt.Sprintf("%s/%s%s", executionID, jobID, extensionFor(mime, info.MediaType))
	url, err := o.media.Upload(ctx, key, data, mime)
	if err != nil {
		return nil, domain.WrapError(domain.KindUpload, jobID, err, "upload inline payload")
	}
	return &domain.MediaOutput{Type: info.MediaType, URL: url, MimeType: mime}, nil
}

func decodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data uri")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data uri")
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return mime, data, nil
}

func extensionFor(mime string, mediaType domain.MediaType) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "video/mp4":
		return ".mp4"
	}
	switch mediaType {
	case domain.MediaTypeImage:
		return ".png"
	case domain.MediaTypeAudio:
		return ".mp3"
	default:
		return ".mp4"
	}
}

func mimeFromURL(url string, mediaType domain.MediaType) string {
	trimmed := url
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	switch {
	case strings.HasSuffix(trimmed, ".png"):
		return "image/png"
	case strings.HasSuffix(trimmed, ".jpg"), strings.HasSuffix(trimmed, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(trimmed, ".webp"):
		return "image/webp"
	case strings.HasSuffix(trimmed, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(trimmed, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(trimmed, ".mp4"):
		return "video/mp4"
	}
	switch mediaType {
	case domain.MediaTypeImage:
		return "image/png"
	case domain.MediaTypeAudio:
		return "audio/mpeg"
	default:
		return "video/mp4"
	}
}

func marshalResult(result *domain.MediaOutput) json.RawMessage {
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	return raw
}
