package domain

import "time"

// ExecutionStatus enumerates execution lifecycle states. Transitions are
// monotonic: pending -> processing -> {completed|failed}.
type ExecutionStatus string

const (
	ExecutionStatusPending    ExecutionStatus = "pending"
	ExecutionStatusProcessing ExecutionStatus = "processing"
	ExecutionStatusCompleted  ExecutionStatus = "completed"
	ExecutionStatusFailed     ExecutionStatus = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// Execution is one end-to-end run of a compiled execution plan.
type Execution struct {
	ID              string            `json:"id"`
	Status          ExecutionStatus   `json:"status"`
	OrganizationID  string            `json:"organizationId,omitempty"`
	BaseExecutionID string            `json:"baseExecutionId,omitempty"`
	ProviderAPIKeys map[string]string `json:"-"`
	WebhookURL      string            `json:"-"`
	WebhookSecret   string            `json:"-"`
	Result          *MediaOutput      `json:"result,omitempty"`
	ErrorMessage    string            `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
}

// ExecutionProgress summarizes how far an execution has advanced. It backs
// the status endpoint and the client progress callback.
type ExecutionProgress struct {
	Status        ExecutionStatus `json:"status"`
	Progress      int             `json:"progress"`
	TotalJobs     int             `json:"totalJobs"`
	CompletedJobs int             `json:"completedJobs"`
	CurrentJob    string          `json:"currentJob,omitempty"`
	Result        *MediaOutput    `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}
