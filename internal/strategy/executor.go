package strategy

import (
	"context"
	"golang-alerting/internal/model"
	"golang-alerting/internal/repository"
	"sort"
	"time"
)

// ExecutionContext is what an executor learns about the run it performs.
type ExecutionContext struct {
	ExecutionID string            `json:"executionId"`
	TenantID    string            `json:"tenantId"`
	ScheduleID  string            `json:"scheduleId,omitempty"`
	TriggerType model.TriggerType `json:"triggerType"`
	RequestedBy string            `json:"requestedBy"`
	DryRun      bool              `json:"dryRun"`
	StartedAt   time.Time         `json:"startedAt"`
}

// ExecutionResult is the executor's report. Status is COMPLETED or FAILED.
type ExecutionResult struct {
	Status          model.ExecutionStatus  `json:"status"`
	RulesEvaluated  int                    `json:"rulesEvaluated"`
	AlertsGenerated int                    `json:"alertsGenerated"`
	FailureReason   string                 `json:"failureReason,omitempty"`
	FailureCode     string                 `json:"failureCode,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

type MetricProvider interface {
	GetMetrics(ctx context.Context, tenantID string, names []string, at time.Time) ([]model.MetricSample, error)
}

// Executor performs one rule evaluation run. A returned error means the run
// could not be carried out at all; a run that executed but failed reports
// Status FAILED with a nil error.
type Executor interface {
	Execute(ctx context.Context, exec ExecutionContext, rules repository.RuleProvider, metrics MetricProvider) (ExecutionResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, exec ExecutionContext, rules repository.RuleProvider, metrics MetricProvider) (ExecutionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, exec ExecutionContext, rules repository.RuleProvider, metrics MetricProvider) (ExecutionResult, error) {
	return f(ctx, exec, rules, metrics)
}

// metricNames returns the distinct metrics referenced by rules, sorted.
func metricNames(rules []model.Rule) []string {
	seen := make(map[string]struct{})
	for _, r := range rules {
		for _, name := range r.Metrics {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadInputs fetches the tenant's rules and the metrics they reference.
// Either provider may be nil.
func loadInputs(ctx context.Context, exec ExecutionContext, rules repository.RuleProvider, metrics MetricProvider) ([]model.Rule, []model.MetricSample, error) {
	var ruleSet []model.Rule
	if rules != nil {
		loaded, err := rules.GetRulesForTenant(ctx, exec.TenantID)
		if err != nil {
			return nil, nil, err
		}
		ruleSet = loaded
	}

	samples := []model.MetricSample{}
	if names := metricNames(ruleSet); metrics != nil && len(names) > 0 {
		loaded, err := metrics.GetMetrics(ctx, exec.TenantID, names, exec.StartedAt)
		if err != nil {
			return nil, nil, err
		}
		samples = loaded
	}
	return ruleSet, samples, nil
}
