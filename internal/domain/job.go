package domain

import "time"

// JobType enumerates the media transformations a job can perform.
type JobType string

const (
	JobTypeGenerateVideo    JobType = "generateVideo"
	JobTypeGenerateImage    JobType = "generateImage"
	JobTypeGenerateAudio    JobType = "generateAudio"
	JobTypeMerge            JobType = "merge"
	JobTypeCaption          JobType = "caption"
	JobTypeRemoveBackground JobType = "removeBackground"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one provider-facing unit of work within an execution. Params is the
// raw parameter bag from the execution plan; dependency references inside it
// are resolved by the orchestrator just before the provider call.
type Job struct {
	ID            string         `json:"id"`
	ExecutionID   string         `json:"executionId,omitempty"`
	Type          JobType        `json:"type"`
	Params        map[string]any `json:"params"`
	DependsOn     []string       `json:"dependsOn,omitempty"`
	Output        string         `json:"output"`
	Status        JobStatus      `json:"status,omitempty"`
	Progress      int            `json:"progress,omitempty"`
	ProviderJobID string         `json:"providerJobId,omitempty"`
	Result        *MediaOutput   `json:"result,omitempty"`
	ErrorMessage  string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"createdAt,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt,omitempty"`
}

// ExecutionPlan is the wire contract between the graph builder and the
// orchestrator: a flat, dependency-annotated job list in topological order.
type ExecutionPlan struct {
	Jobs            []Job  `json:"jobs"`
	BaseExecutionID string `json:"baseExecutionId,omitempty"`
}

// Validate checks the plan-level invariants: unique ids and dependsOn entries
// that only reference jobs appearing earlier in the list.
func (p *ExecutionPlan) Validate() error {
	if len(p.Jobs) == 0 {
		return NewError(KindValidation, "", "execution plan has no jobs")
	}
	seen := make(map[string]bool, len(p.Jobs))
	for _, j := range p.Jobs {
		if j.ID == "" {
			return NewError(KindValidation, "", "job id is required")
		}
		if seen[j.ID] {
			return NewError(KindValidation, j.ID, "duplicate job id %q", j.ID)
		}
		for _, dep := range j.DependsOn {
			if !seen[dep] {
				return NewError(KindValidation, j.ID, "job %q depends on %q which does not appear earlier in the plan", j.ID, dep)
			}
		}
		seen[j.ID] = true
	}
	return nil
}
