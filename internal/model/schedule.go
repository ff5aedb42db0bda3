package model

import (
	"time"
)

type ScheduleType string

const (
	ScheduleTypeCron     ScheduleType = "cron"
	ScheduleTypeInterval ScheduleType = "interval"
	ScheduleTypeDaily    ScheduleType = "daily"
)

const (
	DefaultExecutionWindow = 24 * time.Hour
	DefaultToleranceMs     = int64(60_000)
)

// ScheduleConfig carries the type specific calendar settings.
type ScheduleConfig struct {
	Expression  string     `json:"expression,omitempty"`
	IntervalMs  int64      `json:"intervalMs,omitempty" validate:"gte=0"`
	Times       []string   `json:"times,omitempty" validate:"dive,len=5"`
	DaysOfWeek  []int      `json:"daysOfWeek,omitempty" validate:"dive,gte=0,lte=6"`
	ToleranceMs int64      `json:"toleranceMs,omitempty" validate:"gte=0"`
	StartAt     *time.Time `json:"startAt,omitempty"`
	EndAt       *time.Time `json:"endAt,omitempty"`
}

// ScheduleDefinition is a tenant scoped calendar or interval rule.
type ScheduleDefinition struct {
	Type     ScheduleType   `json:"type" validate:"required,oneof=cron interval daily"`
	Timezone string         `json:"timezone"`
	Config   ScheduleConfig `json:"config"`
	Enabled  bool           `json:"enabled"`
}

func (d ScheduleDefinition) Tolerance() time.Duration {
	if d.Config.ToleranceMs <= 0 {
		return time.Duration(DefaultToleranceMs) * time.Millisecond
	}
	return time.Duration(d.Config.ToleranceMs) * time.Millisecond
}

func (d ScheduleDefinition) Interval() time.Duration {
	return time.Duration(d.Config.IntervalMs) * time.Millisecond
}

// TimeWindow is an HH:MM range in the schedule timezone. End before Start
// wraps past midnight.
type TimeWindow struct {
	Start string `json:"start" validate:"required,len=5"`
	End   string `json:"end" validate:"required,len=5"`
	Days  []int  `json:"days,omitempty" validate:"dive,gte=0,lte=6"`
}

// SchedulePolicy holds the safety constraints attached to a schedule.
type SchedulePolicy struct {
	CooldownPeriodMs       int64        `json:"cooldownPeriodMs" validate:"gte=0"`
	MaxExecutionsPerWindow int          `json:"maxExecutionsPerWindow" validate:"gte=0"`
	ExecutionWindowMs      int64        `json:"executionWindowMs" validate:"gte=0"`
	AllowedTimeWindows     []TimeWindow `json:"allowedTimeWindows,omitempty" validate:"dive"`
	ExcludedDates          []string     `json:"excludedDates,omitempty" validate:"dive,datetime=2006-01-02"`
	ExcludedDays           []int        `json:"excludedDays,omitempty" validate:"dive,gte=0,lte=6"`
}

func (p SchedulePolicy) Cooldown() time.Duration {
	return time.Duration(p.CooldownPeriodMs) * time.Millisecond
}

// ExecutionWindow falls back to DefaultExecutionWindow when unset.
func (p SchedulePolicy) ExecutionWindow() time.Duration {
	return p.ExecutionWindowOr(DefaultExecutionWindow)
}

// ExecutionWindowOr falls back to fallback when unset, and to
// DefaultExecutionWindow when fallback is not positive either.
func (p SchedulePolicy) ExecutionWindowOr(fallback time.Duration) time.Duration {
	if p.ExecutionWindowMs > 0 {
		return time.Duration(p.ExecutionWindowMs) * time.Millisecond
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultExecutionWindow
}

// ScheduledExecution is one fixture entry: a schedule plus its policy.
type ScheduledExecution struct {
	ID          string             `json:"id" validate:"required"`
	TenantID    string             `json:"tenantId" validate:"required"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Schedule    ScheduleDefinition `json:"schedule"`
	Policy      SchedulePolicy     `json:"policy"`
	DryRun      bool               `json:"dryRun"`
}

func (s ScheduledExecution) IsEnabled() bool {
	return s.Schedule.Enabled
}

// ScheduleFixture is the on-disk per tenant schedule file.
type ScheduleFixture struct {
	Version   string               `json:"version" validate:"required,eq=1.0"`
	Schedules []ScheduledExecution `json:"schedules" validate:"dive"`
}
