package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

type TriggerType string

const (
	TriggerTypeManual       TriggerType = "MANUAL"
	TriggerTypeProgrammatic TriggerType = "PROGRAMMATIC"
)

var ErrInvalidHistoryRecord = errors.New("invalid execution history record")

// ExecutionHistoryRecord is an immutable fact written once when an
// execution finishes.
type ExecutionHistoryRecord struct {
	ExecutionID     string            `gorm:"column:execution_id;type:varchar(64);primaryKey" json:"executionId"`
	TenantID        string            `gorm:"column:tenant_id;type:varchar(100);not null;index:idx_history_tenant_finished,priority:1" json:"tenantId"`
	ScheduleID      string            `gorm:"column:schedule_id;type:varchar(100)" json:"scheduleId,omitempty"`
	TriggerType     TriggerType       `gorm:"column:trigger_type;type:varchar(20);not null" json:"triggerType"`
	RequestedBy     string            `gorm:"column:requested_by;type:varchar(255);not null" json:"requestedBy"`
	Status          ExecutionStatus   `gorm:"column:status;type:varchar(20);not null" json:"status"`
	StartedAt       time.Time         `gorm:"column:started_at;not null" json:"startedAt"`
	FinishedAt      time.Time         `gorm:"column:finished_at;not null;index:idx_history_tenant_finished,priority:2" json:"finishedAt"`
	DurationMs      int64             `gorm:"column:duration_ms;not null" json:"durationMs"`
	DryRun          bool              `gorm:"column:dry_run;not null;default:false" json:"dryRun"`
	RulesEvaluated  int               `gorm:"column:rules_evaluated;not null;default:0" json:"rulesEvaluated"`
	AlertsGenerated int               `gorm:"column:alerts_generated;not null;default:0" json:"alertsGenerated"`
	FailureReason   string            `gorm:"column:failure_reason;type:text" json:"failureReason,omitempty"`
	FailureCode     string            `gorm:"column:failure_code;type:varchar(100)" json:"failureCode,omitempty"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (ExecutionHistoryRecord) TableName() string {
	return "execution_history"
}

// NewExecutionHistoryRecord normalizes timestamps to UTC and derives
// DurationMs. FinishedAt before StartedAt is rejected.
func NewExecutionHistoryRecord(rec ExecutionHistoryRecord) (ExecutionHistoryRecord, error) {
	if rec.ExecutionID == "" || rec.TenantID == "" {
		return ExecutionHistoryRecord{}, ErrInvalidHistoryRecord
	}
	if !rec.Status.IsTerminal() {
		return ExecutionHistoryRecord{}, ErrInvalidHistoryRecord
	}
	if rec.FinishedAt.Before(rec.StartedAt) {
		return ExecutionHistoryRecord{}, ErrInvalidHistoryRecord
	}
	rec.StartedAt = rec.StartedAt.UTC()
	rec.FinishedAt = rec.FinishedAt.UTC()
	rec.DurationMs = rec.FinishedAt.Sub(rec.StartedAt).Milliseconds()
	if rec.Metadata != nil {
		md := make(datatypes.JSONMap, len(rec.Metadata))
		for k, v := range rec.Metadata {
			md[k] = v
		}
		rec.Metadata = md
	}
	return rec, nil
}

// ExecutionHistorySummary is a per evaluation aggregate, never persisted.
type ExecutionHistorySummary struct {
	TotalExecutions   int        `json:"totalExecutions"`
	CompletedCount    int        `json:"completedCount"`
	FailedCount       int        `json:"failedCount"`
	CancelledCount    int        `json:"cancelledCount"`
	AverageDurationMs int64      `json:"averageDurationMs"`
	LastExecutionAt   *time.Time `json:"lastExecutionAt,omitempty"`
	WindowStart       time.Time  `json:"windowStart"`
	WindowEnd         time.Time  `json:"windowEnd"`
}

// NeutralSummary is used when history cannot be read.
func NeutralSummary(now time.Time, window time.Duration) ExecutionHistorySummary {
	return ExecutionHistorySummary{
		WindowStart: now.Add(-window).UTC(),
		WindowEnd:   now.UTC(),
	}
}
