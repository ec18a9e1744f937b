package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/provider"
	"github.com/synthome-dev/synthome/internal/queue"
	"github.com/synthome-dev/synthome/internal/registry"
)

// runJob executes one claimed job end to end. The claim transition is the
// concurrency gate: losing it means another worker (or a stale enqueue)
// already owns the job.
func (o *Orchestrator) runJob(ctx context.Context, item queue.Item) {
	claimed, err := o.store.ClaimJob(ctx, item.ExecutionID, item.JobID)
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", item.JobID).Msg("orchestrator: claim failed")
		return
	}
	if !claimed {
		return
	}

	start := time.Now()
	jobType, provider, err := o.executeJob(ctx, item)
	if o.metrics != nil && jobType != "" {
		o.metrics.JobDuration.WithLabelValues(string(jobType)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		won, failErr := o.store.FailJob(ctx, item.ExecutionID, item.JobID, err.Error())
		if failErr != nil {
			o.logger.Error().Err(failErr).Str("job_id", item.JobID).Msg("orchestrator: persist job failure failed")
			return
		}
		if won {
			if o.metrics != nil {
				o.metrics.JobsFailed.WithLabelValues(string(jobType), provider).Inc()
			}
			o.logger.Warn().
				Err(err).
				Str("execution_id", item.ExecutionID).
				Str("job_id", item.JobID).
				Str("kind", string(domain.KindOf(err))).
				Msg("orchestrator: job failed")
		}
	}
}

// executeJob returns the job type and provider for metric labels alongside
// the terminal error, if any. Jobs that hand off to a webhook or reach a
// terminal status inside the poll loop return nil.
func (o *Orchestrator) executeJob(ctx context.Context, item queue.Item) (domain.JobType, string, error) {
	exec, err := o.store.GetExecution(ctx, item.ExecutionID)
	if err != nil {
		return "", "", domain.WrapError(domain.KindConfiguration, item.JobID, err, "load execution")
	}
	job, err := o.store.GetJob(ctx, item.ExecutionID, item.JobID)
	if err != nil {
		return "", "", domain.WrapError(domain.KindConfiguration, item.JobID, err, "load job")
	}

	info, err := o.modelFor(job)
	if err != nil {
		return job.Type, "", err
	}

	resolved, err := o.resolveParams(ctx, exec.ID, job)
	if err != nil {
		return job.Type, info.Provider, err
	}
	validated, err := o.registry.ParseOptions(info.ID, resolved)
	if err != nil {
		return job.Type, info.Provider, err
	}
	opts, notes, err := info.MapParams(validated)
	if err != nil {
		return job.Type, info.Provider, err
	}
	for _, note := range notes {
		o.logger.Debug().Str("job_id", job.ID).Str("model", info.ID).Msg("orchestrator: " + note)
	}

	adapter, err := o.providers.Adapter(info.Provider, exec.ProviderAPIKeys[info.Provider])
	if err != nil {
		return job.Type, info.Provider, err
	}

	result, err := adapter.StartGeneration(ctx, provider.StartRequest{
		JobID:           job.ID,
		ProviderModelID: info.ProviderModelID,
		Options:         opts,
		WebhookURL:      o.webhookURL(info, exec.ID, job.ID),
	})
	if err != nil {
		return job.Type, info.Provider, domain.WrapError(domain.KindProvider, job.ID, err, "start generation")
	}
	if err := o.store.SetJobProviderRef(ctx, exec.ID, job.ID, result.ProviderJobID); err != nil {
		return job.Type, info.Provider, domain.WrapError(domain.KindProvider, job.ID, err, "persist provider ref")
	}

	if result.Strategy == registry.StrategyWebhook {
		// Completion arrives on the inbound webhook route.
		return job.Type, info.Provider, nil
	}
	return job.Type, info.Provider, o.pollUntilTerminal(ctx, exec, job, info, adapter, result.ProviderJobID)
}

// pollUntilTerminal drives the bounded poll loop. Media types pace
// differently: audio finishes in seconds, image and video take longer.
func (o *Orchestrator) pollUntilTerminal(ctx context.Context, exec *domain.Execution, job *domain.Job, info registry.ModelInfo, adapter provider.Adapter, providerJobID string) error {
	interval, attempts := o.pollPlan(info.MediaType)
	parser := info.PollingParser
	if parser == nil {
		return domain.NewError(domain.KindConfiguration, job.ID, "model %s has no polling parser", info.ID)
	}

	// The first fetch runs immediately: synchronous-wrapped results are
	// already cached in-process and must not wait out an interval.
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return domain.WrapError(domain.KindTimeout, job.ID, ctx.Err(), "poll interrupted")
			case <-time.After(interval):
			}
		}
		if o.metrics != nil {
			o.metrics.PollAttempts.WithLabelValues(info.Provider).Inc()
		}
		raw, err := adapter.GetRawJobResponse(ctx, info.ProviderModelID, providerJobID)
		if err != nil {
			// Transient fetch failures burn an attempt but do not fail the job.
			o.logger.Warn().Err(err).Str("job_id", job.ID).Int("attempt", attempt).Msg("orchestrator: poll fetch failed")
			continue
		}
		resp, err := parser(raw)
		if err != nil {
			return domain.WrapError(domain.KindProvider, job.ID, err, "parse provider response")
		}
		if resp.Status == domain.JobStatusProcessing {
			estimate := attempt * 95 / attempts
			if err := o.store.UpdateJobProgress(ctx, exec.ID, job.ID, estimate); err != nil {
				o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("orchestrator: progress update failed")
			}
			continue
		}
		return o.settleJob(ctx, exec, job, info, resp)
	}
	return domain.NewError(domain.KindTimeout, job.ID,
		"provider did not reach a terminal status within %d polls (%s apart)", attempts, interval)
}

func (o *Orchestrator) pollPlan(mediaType domain.MediaType) (time.Duration, int) {
	interval := o.cfg.VideoPollInterval
	attempts := o.cfg.VideoPollAttempts
	if mediaType == domain.MediaTypeAudio {
		interval = o.cfg.AudioPollInterval
		attempts = o.cfg.AudioPollAttempts
		if interval <= 0 {
			interval = time.Second
		}
		if attempts <= 0 {
			attempts = 30
		}
		return interval, attempts
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if attempts <= 0 {
		attempts = 60
	}
	return interval, attempts
}

// modelFor resolves the registry entry for a job, preferring an explicit
// model parameter over the per-type default. Unknown models fail the job
// before any provider call.
func (o *Orchestrator) modelFor(job *domain.Job) (registry.ModelInfo, error) {
	modelID, _ := job.Params["model"].(string)
	if modelID == "" {
		def, ok := o.registry.DefaultModel(job.Type)
		if !ok {
			return registry.ModelInfo{}, domain.NewError(domain.KindConfiguration, job.ID, "no model registered for job type %s", job.Type)
		}
		modelID = def
	}
	info, ok := o.registry.Lookup(modelID)
	if !ok {
		return registry.ModelInfo{}, domain.NewError(domain.KindValidation, job.ID, "unknown model %q", modelID)
	}
	return info, nil
}

// resolveParams replaces dependency tokens with the referenced jobs' output
// URLs. Dependencies are completed by the time a job is enqueued, so a
// missing result is an extraction fault, not a scheduling race.
func (o *Orchestrator) resolveParams(ctx context.Context, executionID string, job *domain.Job) (map[string]any, error) {
	resolved := make(map[string]any, len(job.Params))
	for key, value := range job.Params {
		switch v := value.(type) {
		case string:
			url, err := o.resolveValue(ctx, executionID, job.ID, v)
			if err != nil {
				return nil, err
			}
			resolved[key] = url
		case []any:
			list := make([]any, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					list = append(list, item)
					continue
				}
				url, err := o.resolveValue(ctx, executionID, job.ID, s)
				if err != nil {
					return nil, err
				}
				list = append(list, url)
			}
			resolved[key] = list
		case []string:
			list := make([]string, 0, len(v))
			for _, s := range v {
				url, err := o.resolveValue(ctx, executionID, job.ID, s)
				if err != nil {
					return nil, err
				}
				list = append(list, url)
			}
			resolved[key] = list
		default:
			resolved[key] = value
		}
	}
	return resolved, nil
}

func (o *Orchestrator) resolveValue(ctx context.Context, executionID, jobID, value string) (string, error) {
	depID, ok := domain.ParseDependencyToken(value)
	if !ok {
		return value, nil
	}
	dep, err := o.store.GetJob(ctx, executionID, depID)
	if err != nil {
		return "", domain.WrapError(domain.KindExtraction, jobID, err, "load dependency %s", depID)
	}
	if dep.Result == nil || dep.Result.URL == "" {
		return "", domain.NewError(domain.KindExtraction, jobID, "dependency %s completed without an output URL", depID)
	}
	return dep.Result.URL, nil
}

func (o *Orchestrator) webhookURL(info registry.ModelInfo, executionID, jobID string) string {
	if o.cfg.PublicBaseURL == "" || !info.Capabilities.SupportsWebhooks {
		return ""
	}
	if info.Capabilities.DefaultStrategy != registry.StrategyWebhook {
		return ""
	}
	return fmt.Sprintf("%s/v1/webhooks/%s/%s", strings.TrimRight(o.cfg.PublicBaseURL, "/"), executionID, jobID)
}
