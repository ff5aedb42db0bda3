package dto

import (
	"golang-alerting/internal/model"
	"time"
)

// StartExecutionRequest asks the controller to run one execution. Now
// overrides the controller clock for the start timestamp.
type StartExecutionRequest struct {
	TenantID    string            `json:"tenantId" validate:"required,max=100"`
	ScheduleID  string            `json:"scheduleId,omitempty" validate:"max=100"`
	TriggerType model.TriggerType `json:"triggerType" validate:"required,oneof=MANUAL PROGRAMMATIC"`
	RequestedBy string            `json:"requestedBy" validate:"required,notblank,max=255"`
	DryRun      bool              `json:"dryRun"`
	Reason      string            `json:"reason,omitempty" validate:"max=500"`
	Now         *time.Time        `json:"now,omitempty"`
}

type StartResult struct {
	Accepted         bool                  `json:"accepted"`
	ExecutionID      string                `json:"executionId,omitempty"`
	Status           model.ExecutionStatus `json:"status,omitempty"`
	RejectionReason  string                `json:"rejectionReason,omitempty"`
	ValidationErrors []string              `json:"validationErrors,omitempty"`
}

// CancelExecutionRequest stamps the cancellation at Now when set, otherwise
// at the controller clock.
type CancelExecutionRequest struct {
	Reason      string     `json:"reason" validate:"max=500"`
	CancelledBy string     `json:"cancelledBy" validate:"required,notblank,max=255"`
	Now         *time.Time `json:"now,omitempty"`
}

type CancelExecutionResponse struct {
	ExecutionID string `json:"executionId"`
	Cancelled   bool   `json:"cancelled"`
}

// CleanupRequest falls back to the configured retention when MaxAgeMs is
// omitted.
type CleanupRequest struct {
	MaxAgeMs *int64     `json:"maxAgeMs,omitempty" validate:"omitempty,gte=0"`
	Now      *time.Time `json:"now,omitempty"`
}

type CleanupResponse struct {
	Removed int `json:"removed"`
}

type TickRequest struct {
	Now         *time.Time `json:"now,omitempty"`
	MaxTriggers int        `json:"maxTriggers" validate:"gte=0"`
	DryRun      bool       `json:"dryRun"`
	RequestedBy string     `json:"requestedBy,omitempty" validate:"max=255"`
}

// RunResult is a tick followed by one start attempt per candidate.
type RunResult struct {
	Tick       model.TickResult `json:"tick"`
	Executions []StartResult    `json:"executions"`
}

type HistoryQueryRequest struct {
	Limit     int    `query:"limit"`
	Offset    int    `query:"offset"`
	StartTime string `query:"start_time"`
	EndTime   string `query:"end_time"`
	Status    string `query:"status"`
	DryRun    string `query:"dry_run"`
	Order     string `query:"order"`
}

type SummaryRequest struct {
	WindowMs int64  `query:"window_ms"`
	Now      string `query:"now"`
}

type ReloadFixturesRequest struct {
	TenantIDs []string `json:"tenantIds"`
}
