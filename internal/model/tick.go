package model

import "time"

// Gate identifiers carried in RunnerScheduleDecision.BlockedBy.
const (
	BlockedByCalendar = "CALENDAR"
	BlockedByCooldown = "COOLDOWN"
	BlockedByLimit    = "LIMIT"
	BlockedByError    = "ERROR"
)

// RunnerScheduleDecision is the policy outcome for one schedule in a tick.
type RunnerScheduleDecision struct {
	ScheduleID     string     `json:"scheduleId"`
	ScheduleName   string     `json:"scheduleName,omitempty"`
	ShouldTrigger  bool       `json:"shouldTrigger"`
	Reason         string     `json:"reason"`
	BlockedBy      string     `json:"blockedBy,omitempty"`
	NextEligibleAt *time.Time `json:"nextEligibleAt,omitempty"`
}

// TriggerRequest is the part of a start request derived from a tick.
type TriggerRequest struct {
	TriggerType TriggerType `json:"triggerType"`
	RequestedBy string      `json:"requestedBy"`
	DryRun      bool        `json:"dryRun"`
}

// TriggerCandidate is a schedule that passed every gate in a tick.
type TriggerCandidate struct {
	ScheduleID string         `json:"scheduleId"`
	TenantID   string         `json:"tenantId"`
	Request    TriggerRequest `json:"request"`
}

type TickResult struct {
	TenantID          string                   `json:"tenantId"`
	EvaluatedAt       time.Time                `json:"evaluatedAt"`
	EvaluatedCount    int                      `json:"evaluatedCount"`
	TriggeredCount    int                      `json:"triggeredCount"`
	Decisions         []RunnerScheduleDecision `json:"decisions"`
	TriggerCandidates []TriggerCandidate       `json:"triggerCandidates"`
}

// EmptyTickResult is returned when a tick aborts.
func EmptyTickResult(tenantID string, now time.Time) TickResult {
	return TickResult{
		TenantID:          tenantID,
		EvaluatedAt:       now.UTC(),
		Decisions:         []RunnerScheduleDecision{},
		TriggerCandidates: []TriggerCandidate{},
	}
}
