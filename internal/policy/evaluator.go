// Package policy decides whether a schedule may run at a given instant.
//
// Evaluate is pure: it reads nothing but its arguments, so the same inputs
// always give the same Decision. Gates run in a fixed order and the first
// one that blocks wins:
//
//	CALENDAR -> COOLDOWN -> LIMIT -> admit
//
// A broken schedule definition blocks with ERROR.
package policy

import (
	"fmt"
	"golang-alerting/internal/model"
	"time"
)

// InstantLayout renders instants as ISO-8601 UTC with millisecond precision.
const InstantLayout = "2006-01-02T15:04:05.000Z"

type Input struct {
	Now            time.Time
	HistorySummary model.ExecutionHistorySummary
	DryRun         bool
}

type Decision struct {
	ShouldTrigger  bool
	Reason         string
	BlockedBy      string
	NextEligibleAt *time.Time
}

func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

func Evaluate(schedule model.ScheduleDefinition, pol model.SchedulePolicy, in Input) Decision {
	now := in.Now.UTC()

	cal, err := checkCalendar(schedule, pol, now)
	if err != nil {
		return block(model.BlockedByError, err.Error(), nil)
	}
	if !cal.open {
		return block(model.BlockedByCalendar, cal.detail, nil)
	}

	if last := in.HistorySummary.LastExecutionAt; last != nil && pol.CooldownPeriodMs > 0 {
		if now.Sub(*last) < pol.Cooldown() {
			next := last.UTC().Add(pol.Cooldown())
			return block(model.BlockedByCooldown,
				fmt.Sprintf("last execution at %s, next eligible at %s", FormatInstant(*last), FormatInstant(next)),
				&next)
		}
	}

	if pol.MaxExecutionsPerWindow > 0 && in.HistorySummary.TotalExecutions >= pol.MaxExecutionsPerWindow {
		window := in.HistorySummary.WindowEnd.Sub(in.HistorySummary.WindowStart)
		if window <= 0 {
			window = pol.ExecutionWindow()
		}
		return block(model.BlockedByLimit,
			fmt.Sprintf("%d executions in the last %s reached the maximum of %d",
				in.HistorySummary.TotalExecutions, window, pol.MaxExecutionsPerWindow),
			nil)
	}

	reason := "all policy gates passed"
	if in.DryRun {
		reason += " (dry run)"
	}
	return Decision{ShouldTrigger: true, Reason: reason}
}

func block(gate, detail string, next *time.Time) Decision {
	return Decision{
		ShouldTrigger:  false,
		Reason:         gate + ": " + detail,
		BlockedBy:      gate,
		NextEligibleAt: next,
	}
}

// ValidateSchedule reports semantic problems that struct tags cannot
// express. An empty result means the schedule can be evaluated.
func ValidateSchedule(s model.ScheduledExecution) []string {
	var problems []string
	def := s.Schedule

	if _, err := LoadLocation(def.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("schedule.timezone: %v", err))
	}
	switch def.Type {
	case model.ScheduleTypeCron:
		if _, err := ParseCron(def.Config.Expression); err != nil {
			problems = append(problems, fmt.Sprintf("schedule.config.expression: %v", err))
		}
	case model.ScheduleTypeInterval:
		if def.Config.IntervalMs <= 0 {
			problems = append(problems, "schedule.config.intervalMs: must be greater than 0")
		}
	case model.ScheduleTypeDaily:
		if len(def.Config.Times) == 0 {
			problems = append(problems, "schedule.config.times: at least one time is required")
		}
		for _, raw := range def.Config.Times {
			if _, _, err := ParseHHMM(raw); err != nil {
				problems = append(problems, fmt.Sprintf("schedule.config.times: %v", err))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("schedule.type: unknown type %q", def.Type))
	}
	if def.Config.StartAt != nil && def.Config.EndAt != nil && def.Config.EndAt.Before(*def.Config.StartAt) {
		problems = append(problems, "schedule.config.endAt: must not be before startAt")
	}
	for _, w := range s.Policy.AllowedTimeWindows {
		if _, _, err := ParseHHMM(w.Start); err != nil {
			problems = append(problems, fmt.Sprintf("policy.allowedTimeWindows.start: %v", err))
		}
		if _, _, err := ParseHHMM(w.End); err != nil {
			problems = append(problems, fmt.Sprintf("policy.allowedTimeWindows.end: %v", err))
		}
	}
	return problems
}
