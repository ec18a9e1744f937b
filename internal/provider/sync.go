package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/synthome-dev/synthome/internal/registry"
)

// syncRunner performs one blocking generation call and returns the result
// already normalized.
type syncRunner interface {
	Generate(ctx context.Context, req StartRequest) (registry.NormalizedResponse, error)
}

// Synchronous adapts a blocking provider to the start-then-observe contract.
// StartGeneration runs the whole call, caches the normalized result under a
// locally minted job id, and the first status fetch consumes it. The provider
// is never contacted a second time, and the cache never outlives the fetch:
// the adapter lives for the process, so entries left behind would pin every
// inline payload in memory.
type Synchronous struct {
	runner syncRunner

	mu      sync.Mutex
	results map[string][]byte
}

type normalizedPayload struct {
	Status   string         `json:"status"`
	Outputs  []string       `json:"outputs,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewSynchronous wraps a blocking runner.
func NewSynchronous(runner syncRunner) *Synchronous {
	return &Synchronous{runner: runner, results: map[string][]byte{}}
}

// Capabilities reports the synchronous strategy; callers treat it as polling
// with an immediately terminal first poll.
func (s *Synchronous) Capabilities() registry.Capabilities {
	return registry.Capabilities{DefaultStrategy: registry.StrategySynchronous}
}

// StartGeneration blocks on the provider call and caches its outcome.
func (s *Synchronous) StartGeneration(ctx context.Context, req StartRequest) (StartResult, error) {
	resp, err := s.runner.Generate(ctx, req)
	if err != nil {
		return StartResult{}, err
	}
	raw, err := json.Marshal(normalizedPayload{
		Status:   string(resp.Status),
		Outputs:  resp.Outputs,
		Error:    resp.Error,
		Metadata: resp.Metadata,
	})
	if err != nil {
		return StartResult{}, fmt.Errorf("provider: encode cached result: %w", err)
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.results[id] = raw
	s.mu.Unlock()
	return StartResult{ProviderJobID: id, Strategy: registry.StrategyPolling}, nil
}

// GetRawJobResponse hands back the cached result exactly once; jobs run a
// single attempt, so nothing fetches a second time.
func (s *Synchronous) GetRawJobResponse(_ context.Context, _, providerJobID string) ([]byte, error) {
	s.mu.Lock()
	raw, ok := s.results[providerJobID]
	if ok {
		delete(s.results, providerJobID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("provider: no cached result for job %s", providerJobID)
	}
	return raw, nil
}
