package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/synthome-dev/synthome/internal/domain"
	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/sqlinline"
)

// PostgresStore persists executions and jobs through the shared SQL runner.
// Conditional transitions rely on the status predicate in the UPDATE itself;
// the reported row count tells callers whether they won the transition.
type PostgresStore struct {
	sql infra.SQLExecutor
}

// NewPostgresStore wraps a SQL executor (pool-backed in production, stubbed
// in tests).
func NewPostgresStore(sql infra.SQLExecutor) *PostgresStore {
	return &PostgresStore{sql: sql}
}

func (s *PostgresStore) CreateExecution(ctx context.Context, exec *domain.Execution, jobs []domain.Job) error {
	keys, err := json.Marshal(exec.ProviderAPIKeys)
	if err != nil {
		return fmt.Errorf("store: encode provider keys: %w", err)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QInsertExecution,
		exec.ID, string(exec.Status), exec.OrganizationID, exec.BaseExecutionID, keys, exec.WebhookURL, exec.WebhookSecret); err != nil {
		return fmt.Errorf("store: insert execution: %w", err)
	}
	for i, j := range jobs {
		params, err := json.Marshal(j.Params)
		if err != nil {
			return fmt.Errorf("store: encode params for %s: %w", j.ID, err)
		}
		deps := j.DependsOn
		if deps == nil {
			deps = []string{}
		}
		if _, err := s.sql.Exec(ctx, sqlinline.QInsertJob,
			exec.ID, j.ID, string(j.Type), params, deps, j.Output, i); err != nil {
			return fmt.Errorf("store: insert job %s: %w", j.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectExecution, id)
	var (
		exec        domain.Execution
		status      string
		keysRaw     []byte
		resultRaw   []byte
		completedAt *time.Time
	)
	if err := row.Scan(&exec.ID, &status, &exec.OrganizationID, &exec.BaseExecutionID, &keysRaw,
		&exec.WebhookURL, &exec.WebhookSecret, &resultRaw, &exec.ErrorMessage,
		&exec.CreatedAt, &completedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: select execution: %w", err)
	}
	exec.Status = domain.ExecutionStatus(status)
	exec.CompletedAt = completedAt
	if len(keysRaw) > 0 {
		if err := json.Unmarshal(keysRaw, &exec.ProviderAPIKeys); err != nil {
			return nil, fmt.Errorf("store: decode provider keys: %w", err)
		}
	}
	if len(resultRaw) > 0 {
		exec.Result = &domain.MediaOutput{}
		if err := json.Unmarshal(resultRaw, exec.Result); err != nil {
			return nil, fmt.Errorf("store: decode result: %w", err)
		}
	}
	return &exec, nil
}

func (s *PostgresStore) ListActiveExecutions(ctx context.Context) ([]string, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectActiveExecutions)
	if err != nil {
		return nil, fmt.Errorf("store: select active executions: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan execution id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) ListJobs(ctx context.Context, executionID string) ([]domain.Job, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectJobsByExecution, executionID)
	if err != nil {
		return nil, fmt.Errorf("store: select jobs: %w", err)
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) GetJob(ctx context.Context, executionID, jobID string) (*domain.Job, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectJob, executionID, jobID)
	j, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var (
		j         domain.Job
		typ       string
		status    string
		paramsRaw []byte
		resultRaw []byte
	)
	if err := row.Scan(&j.ExecutionID, &j.ID, &typ, &paramsRaw, &j.DependsOn, &j.Output,
		&status, &j.Progress, &j.ProviderJobID, &resultRaw, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Type = domain.JobType(typ)
	j.Status = domain.JobStatus(status)
	if len(paramsRaw) > 0 {
		if err := json.Unmarshal(paramsRaw, &j.Params); err != nil {
			return nil, fmt.Errorf("store: decode params for %s: %w", j.ID, err)
		}
	}
	if len(resultRaw) > 0 {
		j.Result = &domain.MediaOutput{}
		if err := json.Unmarshal(resultRaw, j.Result); err != nil {
			return nil, fmt.Errorf("store: decode result for %s: %w", j.ID, err)
		}
	}
	return &j, nil
}

func (s *PostgresStore) MarkExecutionProcessing(ctx context.Context, id string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QMarkExecutionProcessing, id)
	return err
}

func (s *PostgresStore) CompleteExecution(ctx context.Context, id string, result *domain.MediaOutput) (bool, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("store: encode result: %w", err)
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QCompleteExecution, id, raw)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) FailExecution(ctx context.Context, id, message string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QFailExecution, id, message)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ClaimJob(ctx context.Context, executionID, jobID string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QClaimJob, executionID, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetJobProviderRef(ctx context.Context, executionID, jobID, providerJobID string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QSetJobProviderRef, executionID, jobID, providerJobID)
	return err
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, executionID, jobID string, progress int) error {
	_, err := s.sql.Exec(ctx, sqlinline.QUpdateJobProgress, executionID, jobID, progress)
	return err
}

func (s *PostgresStore) CompleteJob(ctx context.Context, executionID, jobID string, result *domain.MediaOutput) (bool, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("store: encode result for %s: %w", jobID, err)
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QCompleteJob, executionID, jobID, raw)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) FailJob(ctx context.Context, executionID, jobID, message string) (bool, error) {
	tag, err := s.sql.Exec(ctx, sqlinline.QFailJob, executionID, jobID, message)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ Store = (*PostgresStore)(nil)
