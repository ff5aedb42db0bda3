package service

import (
	"context"
	"fmt"
	"golang-alerting/config"
	"golang-alerting/internal/model"
	"golang-alerting/internal/policy"
	"golang-alerting/internal/repository"
	"golang-alerting/pkg/logger"
	"golang-alerting/pkg/metrics"
	"golang-alerting/pkg/utils"
	"sort"
	"time"
)

const (
	DefaultMaxTriggers = 10
	DefaultRequestedBy = "schedule-runner"

	decisionAdmitted = "ADMITTED"
)

type TickOptions struct {
	MaxTriggers int
	DryRun      bool
	RequestedBy string
}

// ScheduleRunner evaluates every enabled schedule of a tenant once and
// reports which ones may run. It never starts anything itself.
type ScheduleRunner interface {
	TickTenant(ctx context.Context, tenantID string, now time.Time, opts TickOptions) model.TickResult
}

type scheduleRunner struct {
	cfg       config.Runner
	log       *logger.Logger
	schedules repository.ScheduleProvider
	history   repository.HistoryRepository
	metrics   *metrics.Collector
}

func NewScheduleRunner(
	cfg config.Runner,
	log *logger.Logger,
	schedules repository.ScheduleProvider,
	history repository.HistoryRepository,
	collector *metrics.Collector,
) ScheduleRunner {
	return &scheduleRunner{
		cfg:       cfg,
		log:       log.Named("schedule_runner"),
		schedules: schedules,
		history:   history,
		metrics:   collector,
	}
}

// TickTenant never fails: any error or panic yields an empty result.
func (r *scheduleRunner) TickTenant(ctx context.Context, tenantID string, now time.Time, opts TickOptions) (result model.TickResult) {
	now = now.UTC()
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.RecordTickFailure(tenantID)
			r.log.ErrorContextWithAlert(ctx, "Tick panicked",
				logger.StringField("tenant_id", tenantID),
				logger.StringField("panic", fmt.Sprint(rec)),
			)
			result = model.EmptyTickResult(tenantID, now)
		}
	}()

	result, err := r.tick(ctx, tenantID, now, r.resolveOptions(opts))
	if err != nil {
		r.metrics.RecordTickFailure(tenantID)
		r.log.ErrorContext(ctx, "Tick failed",
			logger.StringField("tenant_id", tenantID),
			logger.ErrorField(err),
		)
		return model.EmptyTickResult(tenantID, now)
	}
	r.metrics.RecordTick(tenantID)
	return result
}

func (r *scheduleRunner) resolveOptions(opts TickOptions) TickOptions {
	if opts.MaxTriggers <= 0 {
		opts.MaxTriggers = r.cfg.MaxTriggers
	}
	if opts.MaxTriggers <= 0 {
		opts.MaxTriggers = DefaultMaxTriggers
	}
	if opts.RequestedBy == "" {
		opts.RequestedBy = r.cfg.RequestedBy
	}
	if opts.RequestedBy == "" {
		opts.RequestedBy = DefaultRequestedBy
	}
	return opts
}

func (r *scheduleRunner) tick(ctx context.Context, tenantID string, now time.Time, opts TickOptions) (model.TickResult, error) {
	all, err := r.schedules.GetSchedulesForTenant(ctx, tenantID)
	if err != nil {
		return model.TickResult{}, fmt.Errorf("load schedules: %w", err)
	}

	enabled := make([]model.ScheduledExecution, 0, len(all))
	for _, s := range all {
		if s.IsEnabled() {
			enabled = append(enabled, s)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].ID < enabled[j].ID })

	result := model.EmptyTickResult(tenantID, now)
	result.EvaluatedCount = len(enabled)

	for _, s := range enabled {
		if !utils.ShouldContinue(ctx, r.log) {
			return model.TickResult{}, fmt.Errorf("tick interrupted: %w", ctx.Err())
		}

		dryRun := opts.DryRun || s.DryRun
		summary := r.summaryFor(ctx, tenantID, s, now)
		decision := policy.Evaluate(s.Schedule, s.Policy, policy.Input{
			Now:            now,
			HistorySummary: summary,
			DryRun:         dryRun,
		})

		result.Decisions = append(result.Decisions, model.RunnerScheduleDecision{
			ScheduleID:     s.ID,
			ScheduleName:   s.Name,
			ShouldTrigger:  decision.ShouldTrigger,
			Reason:         decision.Reason,
			BlockedBy:      decision.BlockedBy,
			NextEligibleAt: decision.NextEligibleAt,
		})
		gate := decision.BlockedBy
		if gate == "" {
			gate = decisionAdmitted
		}
		r.metrics.RecordDecision(gate)

		if !decision.ShouldTrigger {
			r.log.DebugContext(ctx, "Schedule blocked",
				logger.StringField("tenant_id", tenantID),
				logger.StringField("schedule_id", s.ID),
				logger.StringField("reason", decision.Reason),
			)
			continue
		}
		if len(result.TriggerCandidates) >= opts.MaxTriggers {
			r.log.InfoContext(ctx, "Trigger limit reached, schedule skipped this tick",
				logger.StringField("tenant_id", tenantID),
				logger.StringField("schedule_id", s.ID),
				logger.IntField("max_triggers", opts.MaxTriggers),
			)
			continue
		}
		result.TriggerCandidates = append(result.TriggerCandidates, model.TriggerCandidate{
			ScheduleID: s.ID,
			TenantID:   tenantID,
			Request: model.TriggerRequest{
				TriggerType: model.TriggerTypeProgrammatic,
				RequestedBy: opts.RequestedBy,
				DryRun:      dryRun,
			},
		})
	}

	result.TriggeredCount = len(result.TriggerCandidates)
	r.log.InfoContext(ctx, "Tick evaluated",
		logger.StringField("tenant_id", tenantID),
		logger.IntField("evaluated", result.EvaluatedCount),
		logger.IntField("triggered", result.TriggeredCount),
	)
	return result, nil
}

// summaryFor builds the history summary for one schedule. A history failure
// degrades to a neutral summary so the other gates still apply.
func (r *scheduleRunner) summaryFor(ctx context.Context, tenantID string, s model.ScheduledExecution, now time.Time) model.ExecutionHistorySummary {
	window := s.Policy.ExecutionWindowOr(r.cfg.DefaultWindow)
	summary := model.NeutralSummary(now, window)

	count, err := r.history.CountExecutionsInWindow(ctx, tenantID, window, now)
	if err != nil {
		r.log.WarnContext(ctx, "History count unavailable, using neutral summary",
			logger.StringField("tenant_id", tenantID),
			logger.StringField("schedule_id", s.ID),
			logger.ErrorField(err),
		)
		return summary
	}
	last, err := r.history.GetMostRecent(ctx, tenantID)
	if err != nil {
		r.log.WarnContext(ctx, "Most recent execution unavailable, using neutral summary",
			logger.StringField("tenant_id", tenantID),
			logger.StringField("schedule_id", s.ID),
			logger.ErrorField(err),
		)
		return summary
	}

	summary.TotalExecutions = count
	if last != nil {
		finished := last.FinishedAt.UTC()
		summary.LastExecutionAt = &finished
	}
	return summary
}
