package orchestrator

import (
	"context"

	"github.com/synthome-dev/synthome/internal/domain"
)

// HandleProviderCallback applies an inbound provider webhook payload to a
// job. Duplicate or late deliveries are no-ops: the store's conditional
// transitions only let the first terminal signal through.
func (o *Orchestrator) HandleProviderCallback(ctx context.Context, executionID, jobID string, raw []byte) error {
	exec, err := o.store.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	job, err := o.store.GetJob(ctx, executionID, jobID)
	if err != nil {
		return err
	}
	info, err := o.modelFor(job)
	if err != nil {
		return err
	}
	parser := info.WebhookParser
	if parser == nil {
		parser = info.PollingParser
	}
	if parser == nil {
		return domain.NewError(domain.KindConfiguration, jobID, "model %s has no webhook parser", info.ID)
	}
	resp, err := parser(raw)
	if err != nil {
		return domain.WrapError(domain.KindProvider, jobID, err, "parse webhook payload")
	}
	if resp.Status == domain.JobStatusProcessing {
		return nil
	}
	return o.settleJob(ctx, exec, job, info, resp)
}
