package repository

import (
	"context"
	"fmt"
	"golang-alerting/internal/model"
	"time"
)

const (
	MaxHistoryQueryLimit     = 1000
	DefaultHistoryQueryLimit = 50

	DefaultMaxRecordAge        = 7 * 24 * time.Hour
	DefaultMaxRecordsPerTenant = 10_000
)

type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// HistoryQuery filters FindRecentByTenant. Zero values mean "no filter".
type HistoryQuery struct {
	Limit     int
	Offset    int
	StartTime *time.Time
	EndTime   *time.Time
	Status    model.ExecutionStatus
	DryRun    *bool
	Order     SortOrder
}

type HistoryPage struct {
	Records    []model.ExecutionHistoryRecord `json:"records"`
	TotalCount int                            `json:"totalCount"`
	HasMore    bool                           `json:"hasMore"`
}

// HistoryRepository is the append-only, tenant partitioned execution log.
// Every time dependent call takes now from the caller.
type HistoryRepository interface {
	Record(ctx context.Context, rec model.ExecutionHistoryRecord, now time.Time) error
	FindRecentByTenant(ctx context.Context, tenantID string, q HistoryQuery) (HistoryPage, error)
	CountExecutionsInWindow(ctx context.Context, tenantID string, window time.Duration, now time.Time) (int, error)
	GetMostRecent(ctx context.Context, tenantID string) (*model.ExecutionHistoryRecord, error)
	GetExecutionSummary(ctx context.Context, tenantID string, window time.Duration, now time.Time) (model.ExecutionHistorySummary, error)
}

// HistoryPersistenceError wraps a failed Record. Callers must not fail the
// execution because of it.
type HistoryPersistenceError struct {
	ExecutionID string
	Cause       error
}

func (e *HistoryPersistenceError) Error() string {
	return fmt.Sprintf("failed to persist execution history %s: %v", e.ExecutionID, e.Cause)
}

func (e *HistoryPersistenceError) Unwrap() error {
	return e.Cause
}

// HistoryQueryError reports an invalid or failed history read.
type HistoryQueryError struct {
	TenantID string
	Message  string
	Cause    error
}

func (e *HistoryQueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("history query for tenant %s: %s: %v", e.TenantID, e.Message, e.Cause)
	}
	return fmt.Sprintf("history query for tenant %s: %s", e.TenantID, e.Message)
}

func (e *HistoryQueryError) Unwrap() error {
	return e.Cause
}

// normalizeQuery applies defaults and rejects out of range values.
func normalizeQuery(tenantID string, q HistoryQuery) (HistoryQuery, error) {
	if q.Limit > MaxHistoryQueryLimit {
		return q, &HistoryQueryError{TenantID: tenantID, Message: fmt.Sprintf("limit %d exceeds maximum %d", q.Limit, MaxHistoryQueryLimit)}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return q, &HistoryQueryError{TenantID: tenantID, Message: "limit and offset must not be negative"}
	}
	if q.Limit == 0 {
		q.Limit = DefaultHistoryQueryLimit
	}
	switch q.Order {
	case "":
		q.Order = SortDesc
	case SortAsc, SortDesc:
	default:
		return q, &HistoryQueryError{TenantID: tenantID, Message: fmt.Sprintf("unknown order %q", q.Order)}
	}
	return q, nil
}

func (q HistoryQuery) matches(rec model.ExecutionHistoryRecord) bool {
	if q.StartTime != nil && rec.FinishedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && rec.FinishedAt.After(*q.EndTime) {
		return false
	}
	if q.Status != "" && rec.Status != q.Status {
		return false
	}
	if q.DryRun != nil && rec.DryRun != *q.DryRun {
		return false
	}
	return true
}

// summarize aggregates records already filtered to the window.
func summarize(records []model.ExecutionHistoryRecord, windowStart, windowEnd time.Time) model.ExecutionHistorySummary {
	summary := model.ExecutionHistorySummary{
		WindowStart: windowStart.UTC(),
		WindowEnd:   windowEnd.UTC(),
	}
	var totalDuration int64
	for i := range records {
		rec := records[i]
		summary.TotalExecutions++
		switch rec.Status {
		case model.ExecutionStatusCompleted:
			summary.CompletedCount++
		case model.ExecutionStatusFailed:
			summary.FailedCount++
		case model.ExecutionStatusCancelled:
			summary.CancelledCount++
		}
		totalDuration += rec.DurationMs
		if summary.LastExecutionAt == nil || rec.FinishedAt.After(*summary.LastExecutionAt) {
			last := rec.FinishedAt
			summary.LastExecutionAt = &last
		}
	}
	if summary.TotalExecutions > 0 {
		summary.AverageDurationMs = roundDiv(totalDuration, int64(summary.TotalExecutions))
	}
	return summary
}

// roundDiv divides rounding half up. Both operands are non-negative.
func roundDiv(sum, n int64) int64 {
	return (sum*2 + n) / (2 * n)
}
