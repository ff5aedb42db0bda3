package service

import (
	"context"
	"fmt"
	"golang-alerting/config"
	"golang-alerting/internal/dto"
	"golang-alerting/internal/model"
	"golang-alerting/internal/repository"
	"golang-alerting/internal/strategy"
	"golang-alerting/pkg/clock"
	"golang-alerting/pkg/logger"
	"golang-alerting/pkg/metrics"
	"golang-alerting/pkg/utils"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RejectionValidation       = "validation"
	RejectionConcurrencyLimit = "concurrency_limit"
	RejectionExecutionFailed  = "execution_failed"

	FailureCodeExecutorError = "EXECUTOR_ERROR"
	FailureCodeCancelled     = "CANCELLED"
)

// ExecutionTrigger admits start requests, drives each execution through its
// lifecycle and records the terminal outcome in history.
type ExecutionTrigger interface {
	StartExecution(ctx context.Context, req dto.StartExecutionRequest, rules repository.RuleProvider, metrics strategy.MetricProvider) dto.StartResult
	CancelExecution(ctx context.Context, executionID, reason, cancelledBy string, now time.Time) bool
	CleanupTerminalExecutions(maxAge time.Duration, now time.Time) int
	GetExecution(executionID string) (model.ExecutionState, bool)
	ListActive(tenantID string) []model.ExecutionState
	ActiveCount(tenantID string) int
}

type executionTrigger struct {
	cfg      config.Trigger
	log      *logger.Logger
	clock    clock.Clock
	history  repository.HistoryRepository
	executor strategy.Executor
	validate *validator.Validate
	metrics  *metrics.Collector
	newID    func() string

	mu         sync.Mutex
	executions map[string]*model.ExecutionState
}

func NewExecutionTrigger(
	cfg config.Trigger,
	log *logger.Logger,
	clk clock.Clock,
	history repository.HistoryRepository,
	executor strategy.Executor,
	validate *validator.Validate,
	collector *metrics.Collector,
) ExecutionTrigger {
	return &executionTrigger{
		cfg:        cfg,
		log:        log.Named("execution_trigger"),
		clock:      clk,
		history:    history,
		executor:   executor,
		validate:   validate,
		metrics:    collector,
		newID:      uuid.NewString,
		executions: make(map[string]*model.ExecutionState),
	}
}

func (t *executionTrigger) validateRequest(req dto.StartExecutionRequest) []string {
	var problems []string
	if err := t.validate.Struct(req); err != nil {
		problems = utils.ValidationMessages(err)
	}
	if req.TenantID != "" && !utils.ValidIdentifier(req.TenantID) {
		problems = append(problems, "tenantId: contains unsupported characters")
	}
	if req.DryRun && !t.cfg.AllowDryRun {
		problems = append(problems, "dryRun: dry-run executions are disabled")
	}
	return problems
}

func (t *executionTrigger) StartExecution(ctx context.Context, req dto.StartExecutionRequest, rules repository.RuleProvider, metricSource strategy.MetricProvider) dto.StartResult {
	if problems := t.validateRequest(req); len(problems) > 0 {
		t.metrics.RecordRejection(RejectionValidation)
		t.log.WarnContext(ctx, "Start request rejected by validation",
			logger.StringField("tenant_id", req.TenantID),
			logger.Field("errors", problems),
		)
		return dto.StartResult{
			Accepted:         false,
			RejectionReason:  "validation failed",
			ValidationErrors: problems,
		}
	}

	clockStart := t.clock.Now()
	startedAt := clock.NowOr(t.clock, req.Now).UTC()
	state := &model.ExecutionState{
		Trigger: model.ExecutionTrigger{
			ExecutionID: t.newID(),
			TenantID:    req.TenantID,
			ScheduleID:  req.ScheduleID,
			TriggerType: req.TriggerType,
			RequestedBy: req.RequestedBy,
			DryRun:      req.DryRun,
			Reason:      req.Reason,
			RequestedAt: startedAt,
		},
		Status:      model.ExecutionStatusCreated,
		Transitions: []model.ExecutionStatus{model.ExecutionStatusCreated},
	}
	id := state.ExecutionID()
	log := t.log.With(
		logger.StringField("execution_id", id),
		logger.StringField("tenant_id", req.TenantID),
	)

	// admission check and registration share the lock so the ceiling is exact
	t.mu.Lock()
	active := t.activeCountLocked(req.TenantID)
	t.executions[id] = state
	if ceiling := t.cfg.MaxConcurrentPerTenant; ceiling > 0 && active >= ceiling {
		reason := fmt.Sprintf("concurrency limit reached: tenant %s already has %d active executions (max %d)", req.TenantID, active, ceiling)
		t.transitionLocked(state, model.ExecutionStatusCancelled)
		state.CompletedAt = utils.ToPointer(startedAt)
		state.ErrorMessage = reason
		t.mu.Unlock()

		t.metrics.RecordRejection(RejectionConcurrencyLimit)
		log.WarnContext(ctx, "Execution rejected by concurrency ceiling", logger.IntField("active", active))
		return dto.StartResult{
			Accepted:        false,
			ExecutionID:     id,
			Status:          model.ExecutionStatusCancelled,
			RejectionReason: reason,
		}
	}
	t.transitionLocked(state, model.ExecutionStatusStarted)
	state.StartedAt = utils.ToPointer(startedAt)
	active++
	t.mu.Unlock()
	t.metrics.SetActiveExecutions(req.TenantID, active)

	log.InfoContext(ctx, "Execution started",
		logger.StringField("trigger_type", string(req.TriggerType)),
		logger.StringField("requested_by", req.RequestedBy),
		logger.BoolField("dry_run", req.DryRun),
		logger.TimeField("started_at", startedAt),
	)

	result, execErr := t.runExecutor(ctx, strategy.ExecutionContext{
		ExecutionID: id,
		TenantID:    req.TenantID,
		ScheduleID:  req.ScheduleID,
		TriggerType: req.TriggerType,
		RequestedBy: req.RequestedBy,
		DryRun:      req.DryRun,
		StartedAt:   startedAt,
	}, rules, metricSource)

	elapsed := t.clock.Now().Sub(clockStart)
	if elapsed < 0 {
		elapsed = 0
	}
	finishedAt := startedAt.Add(elapsed)

	final := model.ExecutionStatusCompleted
	switch {
	case execErr != nil:
		final = model.ExecutionStatusFailed
	case result.Status == model.ExecutionStatusFailed:
		final = model.ExecutionStatusFailed
	}

	t.mu.Lock()
	if !t.transitionLocked(state, final) {
		// cancelled while the executor ran; the cancel already wrote history
		status := state.Status
		t.mu.Unlock()
		log.WarnContext(ctx, "Executor finished after execution left STARTED, result discarded",
			logger.StringField("status", string(status)),
		)
		t.metrics.SetActiveExecutions(req.TenantID, t.ActiveCount(req.TenantID))
		return dto.StartResult{Accepted: true, ExecutionID: id, Status: status}
	}
	state.CompletedAt = utils.ToPointer(finishedAt)
	if execErr != nil {
		state.ErrorMessage = execErr.Error()
	} else if final == model.ExecutionStatusFailed {
		state.ErrorMessage = result.FailureReason
	}
	t.mu.Unlock()
	t.metrics.SetActiveExecutions(req.TenantID, t.ActiveCount(req.TenantID))
	t.metrics.RecordExecution(string(final), elapsed.Seconds())

	record := model.ExecutionHistoryRecord{
		ExecutionID:     id,
		TenantID:        req.TenantID,
		ScheduleID:      req.ScheduleID,
		TriggerType:     req.TriggerType,
		RequestedBy:     req.RequestedBy,
		Status:          final,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		DryRun:          req.DryRun,
		RulesEvaluated:  result.RulesEvaluated,
		AlertsGenerated: result.AlertsGenerated,
		FailureReason:   result.FailureReason,
		FailureCode:     result.FailureCode,
		Metadata:        toJSONMap(result.Metadata),
	}
	if execErr != nil {
		record.FailureReason = execErr.Error()
		record.FailureCode = FailureCodeExecutorError
		record.Metadata = datatypes.JSONMap{"synthetic": true}
	}
	t.recordHistory(ctx, record, finishedAt)

	if execErr != nil {
		t.metrics.RecordRejection(RejectionExecutionFailed)
		log.ErrorContext(ctx, "Execution failed", logger.ErrorField(execErr))
		return dto.StartResult{
			Accepted:        false,
			ExecutionID:     id,
			Status:          model.ExecutionStatusFailed,
			RejectionReason: fmt.Sprintf("execution failed: %v", execErr),
		}
	}

	log.InfoContext(ctx, "Execution finished",
		logger.StringField("status", string(final)),
		logger.Int64Field("duration_ms", elapsed.Milliseconds()),
		logger.IntField("rules_evaluated", result.RulesEvaluated),
		logger.IntField("alerts_generated", result.AlertsGenerated),
	)
	return dto.StartResult{Accepted: true, ExecutionID: id, Status: final}
}

// runExecutor turns a panicking executor into an error.
func (t *executionTrigger) runExecutor(ctx context.Context, exec strategy.ExecutionContext, rules repository.RuleProvider, metricSource strategy.MetricProvider) (result strategy.ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = strategy.ExecutionResult{}
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return t.executor.Execute(ctx, exec, rules, metricSource)
}

// recordHistory persists rec. Failures are logged and otherwise ignored.
func (t *executionTrigger) recordHistory(ctx context.Context, rec model.ExecutionHistoryRecord, now time.Time) {
	if err := t.history.Record(context.WithoutCancel(ctx), rec, now); err != nil {
		t.metrics.RecordHistoryWriteError()
		t.log.ErrorContextWithAlert(ctx, "Failed to record execution history",
			logger.StringField("execution_id", rec.ExecutionID),
			logger.StringField("tenant_id", rec.TenantID),
			logger.ErrorField(err),
		)
	}
}

// CancelExecution stamps the cancellation at now, which also drives history
// eviction for the cancelled record.
func (t *executionTrigger) CancelExecution(ctx context.Context, executionID, reason, cancelledBy string, now time.Time) bool {
	now = now.UTC()

	t.mu.Lock()
	state, ok := t.executions[executionID]
	if !ok {
		t.mu.Unlock()
		t.log.WarnContext(ctx, "Cancel requested for unknown execution", logger.StringField("execution_id", executionID))
		return false
	}
	if !t.transitionLocked(state, model.ExecutionStatusCancelled) {
		t.mu.Unlock()
		return false
	}
	completedAt := now
	if state.StartedAt != nil && completedAt.Before(*state.StartedAt) {
		completedAt = *state.StartedAt
	}
	state.CompletedAt = utils.ToPointer(completedAt)
	state.ErrorMessage = reason
	state.CancelledBy = cancelledBy
	snapshot := state.Clone()
	t.mu.Unlock()

	tenantID := snapshot.Trigger.TenantID
	t.metrics.SetActiveExecutions(tenantID, t.ActiveCount(tenantID))
	t.metrics.RecordExecution(string(model.ExecutionStatusCancelled), -1)
	t.log.InfoContext(ctx, "Execution cancelled",
		logger.StringField("execution_id", executionID),
		logger.StringField("tenant_id", tenantID),
		logger.StringField("cancelled_by", cancelledBy),
		logger.StringField("reason", reason),
	)

	// only executions that actually started have a run worth recording
	if snapshot.StartedAt == nil {
		return true
	}
	finishedAt := *snapshot.CompletedAt
	t.recordHistory(ctx, model.ExecutionHistoryRecord{
		ExecutionID:   executionID,
		TenantID:      tenantID,
		ScheduleID:    snapshot.Trigger.ScheduleID,
		TriggerType:   snapshot.Trigger.TriggerType,
		RequestedBy:   snapshot.Trigger.RequestedBy,
		Status:        model.ExecutionStatusCancelled,
		StartedAt:     *snapshot.StartedAt,
		FinishedAt:    finishedAt,
		DryRun:        snapshot.Trigger.DryRun,
		FailureReason: reason,
		FailureCode:   FailureCodeCancelled,
		Metadata:      datatypes.JSONMap{"cancelledBy": cancelledBy},
	}, finishedAt)
	return true
}

// CleanupTerminalExecutions forgets terminal executions that completed more
// than maxAge before now and returns how many were removed.
func (t *executionTrigger) CleanupTerminalExecutions(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)

	t.mu.Lock()
	removed := 0
	for id, state := range t.executions {
		if !state.Status.IsTerminal() || state.CompletedAt == nil {
			continue
		}
		if state.CompletedAt.Before(cutoff) {
			delete(t.executions, id)
			removed++
		}
	}
	t.mu.Unlock()

	t.metrics.RecordCleanup(removed)
	if removed > 0 {
		t.log.Info("Terminal executions cleaned up",
			logger.IntField("removed", removed),
			logger.StringField("max_age", maxAge.String()),
		)
	}
	return removed
}

func (t *executionTrigger) GetExecution(executionID string) (model.ExecutionState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.executions[executionID]
	if !ok {
		return model.ExecutionState{}, false
	}
	return state.Clone(), true
}

// ListActive returns the tenant's non-terminal executions, oldest first.
func (t *executionTrigger) ListActive(tenantID string) []model.ExecutionState {
	t.mu.Lock()
	out := make([]model.ExecutionState, 0)
	for _, state := range t.executions {
		if state.Trigger.TenantID == tenantID && !state.Status.IsTerminal() {
			out = append(out, state.Clone())
		}
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Trigger, out[j].Trigger
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		return a.ExecutionID < b.ExecutionID
	})
	return out
}

func (t *executionTrigger) ActiveCount(tenantID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeCountLocked(tenantID)
}

func (t *executionTrigger) activeCountLocked(tenantID string) int {
	n := 0
	for _, state := range t.executions {
		if state.Trigger.TenantID == tenantID && !state.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// transitionLocked applies next when the transition table allows it and
// logs a warning otherwise. Callers hold t.mu.
func (t *executionTrigger) transitionLocked(state *model.ExecutionState, next model.ExecutionStatus) bool {
	if !state.Status.CanTransitionTo(next) {
		t.log.Warn("Illegal execution state transition ignored",
			logger.StringField("execution_id", state.ExecutionID()),
			logger.StringField("from", string(state.Status)),
			logger.StringField("to", string(next)),
		)
		return false
	}
	state.Status = next
	state.Transitions = append(state.Transitions, next)
	return true
}

func toJSONMap(m map[string]interface{}) datatypes.JSONMap {
	if len(m) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
