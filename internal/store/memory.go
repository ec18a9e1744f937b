package store

import (
	"context"
	"sync"
	"time"

	"github.com/synthome-dev/synthome/internal/domain"
)

// MemoryStore keeps executions and jobs in process memory. It backs tests
// and single-process development deployments.
type MemoryStore struct {
	mu         sync.Mutex
	executions map[string]*domain.Execution
	jobs       map[string][]*domain.Job // execution id -> jobs in plan order
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]*domain.Execution),
		jobs:       make(map[string][]*domain.Job),
	}
}

func (s *MemoryStore) CreateExecution(ctx context.Context, exec *domain.Execution, jobs []domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *exec
	s.executions[exec.ID] = &cp
	list := make([]*domain.Job, 0, len(jobs))
	for i := range jobs {
		j := jobs[i]
		j.ExecutionID = exec.ID
		if j.Status == "" {
			j.Status = domain.JobStatusQueued
		}
		now := time.Now()
		j.CreatedAt = now
		j.UpdatedAt = now
		list = append(list, &j)
	}
	s.jobs[exec.ID] = list
	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *exec
	return &cp, nil
}

func (s *MemoryStore) ListActiveExecutions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, exec := range s.executions {
		if !exec.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, executionID string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.jobs[executionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]domain.Job, 0, len(list))
	for _, j := range list {
		out = append(out, *j)
	}
	return out, nil
}

func (s *MemoryStore) GetJob(ctx context.Context, executionID, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.lookupJob(executionID, jobID)
	if j == nil {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *MemoryStore) MarkExecutionProcessing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return ErrNotFound
	}
	if exec.Status == domain.ExecutionStatusPending {
		exec.Status = domain.ExecutionStatusProcessing
	}
	return nil
}

func (s *MemoryStore) CompleteExecution(ctx context.Context, id string, result *domain.MediaOutput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return false, ErrNotFound
	}
	if exec.Status.Terminal() {
		return false, nil
	}
	now := time.Now()
	exec.Status = domain.ExecutionStatusCompleted
	exec.Result = result
	exec.CompletedAt = &now
	return true, nil
}

func (s *MemoryStore) FailExecution(ctx context.Context, id, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return false, ErrNotFound
	}
	if exec.Status.Terminal() {
		return false, nil
	}
	now := time.Now()
	exec.Status = domain.ExecutionStatusFailed
	exec.ErrorMessage = message
	exec.CompletedAt = &now
	return true, nil
}

func (s *MemoryStore) ClaimJob(ctx context.Context, executionID, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.lookupJob(executionID, jobID)
	if j == nil {
		return false, ErrNotFound
	}
	if j.Status != domain.JobStatusQueued {
		return false, nil
	}
	j.Status = domain.JobStatusProcessing
	j.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) SetJobProviderRef(ctx context.Context, executionID, jobID, providerJobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.lookupJob(executionID, jobID)
	if j == nil {
		return ErrNotFound
	}
	j.ProviderJobID = providerJobID
	j.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateJobProgress(ctx context.Context, executionID, jobID string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.lookupJob(executionID, jobID)
	if j == nil {
		return ErrNotFound
	}
	if j.Status == domain.JobStatusProcessing && progress > j.Progress {
		j.Progress = progress
		j.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) CompleteJob(ctx context.Context, executionID, jobID string, result *domain.MediaOutput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.lookupJob(executionID, jobID)
	if j == nil {
		return false, ErrNotFound
	}
	if j.Status.Terminal() {
		return false, nil
	}
	j.Status = domain.JobStatusCompleted
	j.Progress = 100
	j.Result = result
	j.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) FailJob(ctx context.Context, executionID, jobID, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.lookupJob(executionID, jobID)
	if j == nil {
		return false, ErrNotFound
	}
	if j.Status.Terminal() {
		return false, nil
	}
	j.Status = domain.JobStatusFailed
	j.ErrorMessage = message
	j.UpdatedAt = time.Now()
	return true, nil
}

// lookupJob must be called with the mutex held.
func (s *MemoryStore) lookupJob(executionID, jobID string) *domain.Job {
	for _, j := range s.jobs[executionID] {
		if j.ID == jobID {
			return j
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
