package orchestrator

import (
	"context"
	"fmt"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/notify"
	"github.com/synthome-dev/synthome/internal/queue"
)

// scan advances every active execution: fails jobs whose dependencies
// failed, enqueues jobs whose dependencies completed, and finalizes
// executions with no work left.
func (o *Orchestrator) scan(ctx context.Context) error {
	ids, err := o.store.ListActiveExecutions(ctx)
	if err != nil {
		return fmt.Errorf("list active executions: %w", err)
	}
	ready := 0
	for _, id := range ids {
		n, err := o.dispatchExecution(ctx, id)
		if err != nil {
			o.logger.Error().Err(err).Str("execution_id", id).Msg("orchestrator: dispatch failed")
			continue
		}
		ready += n
	}
	if o.metrics != nil {
		o.metrics.QueueDepth.Set(float64(ready))
	}
	return nil
}

func (o *Orchestrator) dispatchExecution(ctx context.Context, executionID string) (int, error) {
	exec, err := o.store.GetExecution(ctx, executionID)
	if err != nil {
		return 0, err
	}
	jobs, err := o.store.ListJobs(ctx, executionID)
	if err != nil {
		return 0, err
	}

	byID := make(map[string]*domain.Job, len(jobs))
	for i := range jobs {
		byID[jobs[i].ID] = &jobs[i]
	}

	enqueued := 0
	allTerminal := true
	for i := range jobs {
		job := &jobs[i]
		switch job.Status {
		case domain.JobStatusQueued:
			if dep := failedDependency(job, byID); dep != "" {
				// Propagate without ever touching a provider.
				msg := fmt.Sprintf("dependency %s failed", dep)
				if _, err := o.store.FailJob(ctx, executionID, job.ID, msg); err != nil {
					return enqueued, err
				}
				job.Status = domain.JobStatusFailed
				job.ErrorMessage = msg
				continue
			}
			if !dependenciesCompleted(job, byID) {
				allTerminal = false
				continue
			}
			if err := o.queue.Enqueue(ctx, queue.Item{ExecutionID: executionID, JobID: job.ID}); err != nil {
				return enqueued, fmt.Errorf("enqueue %s: %w", job.ID, err)
			}
			enqueued++
			allTerminal = false
		case domain.JobStatusProcessing:
			allTerminal = false
		}
	}

	if exec.Status == domain.ExecutionStatusPending && !allTerminal {
		if err := o.store.MarkExecutionProcessing(ctx, executionID); err != nil {
			return enqueued, err
		}
	}

	if allTerminal {
		if err := o.finalizeExecution(ctx, exec, jobs); err != nil {
			return enqueued, err
		}
	}
	return enqueued, nil
}

// finalizeExecution settles an execution whose jobs are all terminal. The
// conditional store transition makes it idempotent across scans.
func (o *Orchestrator) finalizeExecution(ctx context.Context, exec *domain.Execution, jobs []domain.Job) error {
	var failed []domain.Job
	completed := 0
	for _, j := range jobs {
		switch j.Status {
		case domain.JobStatusFailed:
			failed = append(failed, j)
		case domain.JobStatusCompleted:
			completed++
		}
	}

	if len(failed) > 0 {
		message := domain.AggregateError(failed)
		won, err := o.store.FailExecution(ctx, exec.ID, message)
		if err != nil {
			return err
		}
		if won {
			if o.metrics != nil {
				o.metrics.ExecutionsFailed.Inc()
			}
			o.logger.Warn().
				Str("execution_id", exec.ID).
				Int("failed_jobs", len(failed)).
				Msg("orchestrator: execution failed")
			o.sendEvent(ctx, exec, notify.Event{
				ExecutionID:   exec.ID,
				Status:        string(domain.ExecutionStatusFailed),
				Progress:      progressOf(completed, len(jobs)),
				TotalJobs:     len(jobs),
				CompletedJobs: completed,
				Error:         message,
			})
		}
		return nil
	}

	// The final job in plan order carries the execution's result.
	result := jobs[len(jobs)-1].Result
	won, err := o.store.CompleteExecution(ctx, exec.ID, result)
	if err != nil {
		return err
	}
	if won {
		if o.metrics != nil {
			o.metrics.ExecutionsCompleted.Inc()
		}
		o.logger.Info().
			Str("execution_id", exec.ID).
			Int("jobs", len(jobs)).
			Msg("orchestrator: execution completed")
		o.sendEvent(ctx, exec, notify.Event{
			ExecutionID:   exec.ID,
			Status:        string(domain.ExecutionStatusCompleted),
			Progress:      100,
			TotalJobs:     len(jobs),
			CompletedJobs: completed,
			Result:        marshalResult(result),
		})
	}
	return nil
}

func (o *Orchestrator) sendEvent(ctx context.Context, exec *domain.Execution, event notify.Event) {
	if o.notifier == nil || exec.WebhookURL == "" {
		return
	}
	if err := o.notifier.Send(ctx, exec.WebhookURL, exec.WebhookSecret, event); err != nil {
		o.logger.Warn().Err(err).Str("execution_id", exec.ID).Msg("orchestrator: caller webhook undeliverable")
	}
}

func failedDependency(job *domain.Job, byID map[string]*domain.Job) string {
	for _, dep := range job.DependsOn {
		if d, ok := byID[dep]; ok && d.Status == domain.JobStatusFailed {
			return dep
		}
	}
	return ""
}

func dependenciesCompleted(job *domain.Job, byID map[string]*domain.Job) bool {
	for _, dep := range job.DependsOn {
		d, ok := byID[dep]
		if !ok || d.Status != domain.JobStatusCompleted {
			return false
		}
	}
	return true
}

func progressOf(completed, total int) int {
	if total == 0 {
		return 0
	}
	return completed * 100 / total
}
