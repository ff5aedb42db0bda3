package service

import (
	"context"
	"golang-alerting/internal/dto"
	"golang-alerting/internal/repository"
	"golang-alerting/internal/strategy"
	"golang-alerting/pkg/logger"
	"time"
)

const scheduledReason = "scheduled"

// TickAndTrigger runs one tick for tenantID and submits every candidate to
// the trigger controller, in candidate order.
func TickAndTrigger(
	ctx context.Context,
	log *logger.Logger,
	runner ScheduleRunner,
	trigger ExecutionTrigger,
	rules repository.RuleProvider,
	metricSource strategy.MetricProvider,
	tenantID string,
	now time.Time,
	opts TickOptions,
) dto.RunResult {
	tick := runner.TickTenant(ctx, tenantID, now, opts)
	out := dto.RunResult{
		Tick:       tick,
		Executions: make([]dto.StartResult, 0, len(tick.TriggerCandidates)),
	}

	for _, c := range tick.TriggerCandidates {
		at := tick.EvaluatedAt
		res := trigger.StartExecution(ctx, dto.StartExecutionRequest{
			TenantID:    c.TenantID,
			ScheduleID:  c.ScheduleID,
			TriggerType: c.Request.TriggerType,
			RequestedBy: c.Request.RequestedBy,
			DryRun:      c.Request.DryRun,
			Reason:      scheduledReason,
			Now:         &at,
		}, rules, metricSource)
		if !res.Accepted {
			log.WarnContext(ctx, "Trigger candidate not accepted",
				logger.StringField("tenant_id", c.TenantID),
				logger.StringField("schedule_id", c.ScheduleID),
				logger.StringField("reason", res.RejectionReason),
			)
		}
		out.Executions = append(out.Executions, res)
	}
	return out
}
