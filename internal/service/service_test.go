package service

import (
	"context"
	"errors"
	"golang-alerting/internal/model"
	"golang-alerting/internal/repository"
	"golang-alerting/internal/strategy"
	"time"
)

// 2025-06-02 is a Monday.
var baseNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

var errHistoryDown = errors.New("history store unavailable")

// brokenHistory fails every call.
type brokenHistory struct{}

func (brokenHistory) Record(ctx context.Context, rec model.ExecutionHistoryRecord, now time.Time) error {
	return &repository.HistoryPersistenceError{ExecutionID: rec.ExecutionID, Cause: errHistoryDown}
}

func (brokenHistory) FindRecentByTenant(ctx context.Context, tenantID string, q repository.HistoryQuery) (repository.HistoryPage, error) {
	return repository.HistoryPage{}, errHistoryDown
}

func (brokenHistory) CountExecutionsInWindow(ctx context.Context, tenantID string, window time.Duration, now time.Time) (int, error) {
	return 0, errHistoryDown
}

func (brokenHistory) GetMostRecent(ctx context.Context, tenantID string) (*model.ExecutionHistoryRecord, error) {
	return nil, errHistoryDown
}

func (brokenHistory) GetExecutionSummary(ctx context.Context, tenantID string, window time.Duration, now time.Time) (model.ExecutionHistorySummary, error) {
	return model.ExecutionHistorySummary{}, errHistoryDown
}

type failingSchedules struct {
	err   error
	panic bool
}

func (f failingSchedules) GetSchedulesForTenant(ctx context.Context, tenantID string) ([]model.ScheduledExecution, error) {
	if f.panic {
		panic("fixture exploded")
	}
	return nil, f.err
}

func intervalSchedule(tenantID, id string, pol model.SchedulePolicy) model.ScheduledExecution {
	return model.ScheduledExecution{
		ID:       id,
		TenantID: tenantID,
		Name:     "schedule " + id,
		Schedule: model.ScheduleDefinition{
			Type:    model.ScheduleTypeInterval,
			Config:  model.ScheduleConfig{IntervalMs: 60_000},
			Enabled: true,
		},
		Policy: pol,
	}
}

func historyRecord(tenantID, id string, finishedAt time.Time) model.ExecutionHistoryRecord {
	return model.ExecutionHistoryRecord{
		ExecutionID: id,
		TenantID:    tenantID,
		TriggerType: model.TriggerTypeProgrammatic,
		RequestedBy: "seed",
		Status:      model.ExecutionStatusCompleted,
		StartedAt:   finishedAt.Add(-time.Second),
		FinishedAt:  finishedAt,
	}
}

// completingExecutor finishes immediately with the given status.
func completingExecutor(status model.ExecutionStatus) strategy.Executor {
	return strategy.ExecutorFunc(func(ctx context.Context, exec strategy.ExecutionContext, rules repository.RuleProvider, metrics strategy.MetricProvider) (strategy.ExecutionResult, error) {
		return strategy.ExecutionResult{Status: status, RulesEvaluated: 3, AlertsGenerated: 1}, nil
	})
}

// blockingExecutor reports on started and waits for release before completing.
type blockingExecutor struct {
	started chan string
	release chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		started: make(chan string, 100),
		release: make(chan struct{}),
	}
}

func (b *blockingExecutor) Execute(ctx context.Context, exec strategy.ExecutionContext, rules repository.RuleProvider, metrics strategy.MetricProvider) (strategy.ExecutionResult, error) {
	b.started <- exec.ExecutionID
	<-b.release
	return strategy.ExecutionResult{Status: model.ExecutionStatusCompleted}, nil
}
