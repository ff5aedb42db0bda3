package model

import "time"

type ExecutionStatus string

const (
	ExecutionStatusCreated   ExecutionStatus = "CREATED"
	ExecutionStatusStarted   ExecutionStatus = "STARTED"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// executionTransitions lists the legal next statuses. Terminal statuses
// have no entry.
var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusCreated: {ExecutionStatusStarted, ExecutionStatusCancelled},
	ExecutionStatusStarted: {ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled},
}

// IsTerminal returns true for COMPLETED, FAILED and CANCELLED.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// CanTransitionTo reports whether s -> next is in the transition table.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	for _, allowed := range executionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ExecutionTrigger describes why and by whom an execution was requested.
type ExecutionTrigger struct {
	ExecutionID string      `json:"executionId"`
	TenantID    string      `json:"tenantId"`
	ScheduleID  string      `json:"scheduleId,omitempty"`
	TriggerType TriggerType `json:"triggerType"`
	RequestedBy string      `json:"requestedBy"`
	DryRun      bool        `json:"dryRun"`
	Reason      string      `json:"reason,omitempty"`
	RequestedAt time.Time   `json:"requestedAt"`
}

// ExecutionState is the mutable control plane record of one execution.
type ExecutionState struct {
	Trigger      ExecutionTrigger `json:"trigger"`
	Status       ExecutionStatus  `json:"status"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	CancelledBy  string           `json:"cancelledBy,omitempty"`
	// Transitions is the ordered list of statuses this execution went through.
	Transitions []ExecutionStatus `json:"transitions"`
}

func (s ExecutionState) ExecutionID() string {
	return s.Trigger.ExecutionID
}

// Clone returns a copy that shares no mutable memory with s.
func (s ExecutionState) Clone() ExecutionState {
	out := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	out.Transitions = append([]ExecutionStatus(nil), s.Transitions...)
	return out
}
