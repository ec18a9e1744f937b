// Package store persists executions and jobs. It is the single source of
// truth for lifecycle state: every terminal transition is conditional on the
// current status so racing completion signals (a late poll against an
// earlier webhook, or duplicate webhooks) resolve first-terminal-wins.
package store

import (
	"context"
	"errors"

	"github.com/synthome-dev/synthome/internal/domain"
)

// ErrNotFound indicates an unknown execution or job id.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract shared by the HTTP API and the
// orchestrator. Transition methods return false when the row was not in an
// eligible state, which callers treat as "someone else got there first".
type Store interface {
	// CreateExecution durably persists the execution and its jobs in one
	// step. A returned nil error is the submission acknowledgment.
	CreateExecution(ctx context.Context, exec *domain.Execution, jobs []domain.Job) error
	GetExecution(ctx context.Context, id string) (*domain.Execution, error)
	ListActiveExecutions(ctx context.Context) ([]string, error)

	ListJobs(ctx context.Context, executionID string) ([]domain.Job, error)
	GetJob(ctx context.Context, executionID, jobID string) (*domain.Job, error)

	MarkExecutionProcessing(ctx context.Context, id string) error
	CompleteExecution(ctx context.Context, id string, result *domain.MediaOutput) (bool, error)
	FailExecution(ctx context.Context, id, message string) (bool, error)

	// ClaimJob transitions queued -> processing.
	ClaimJob(ctx context.Context, executionID, jobID string) (bool, error)
	SetJobProviderRef(ctx context.Context, executionID, jobID, providerJobID string) error
	// UpdateJobProgress never lowers a previously reported progress value.
	UpdateJobProgress(ctx context.Context, executionID, jobID string, progress int) error
	CompleteJob(ctx context.Context, executionID, jobID string, result *domain.MediaOutput) (bool, error)
	FailJob(ctx context.Context, executionID, jobID, message string) (bool, error)
}
