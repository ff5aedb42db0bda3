package strategy

import (
	"context"
	"fmt"
	"golang-alerting/internal/model"
	"golang-alerting/internal/repository"
	"golang-alerting/pkg/logger"
)

// LocalExecutor loads rules and metrics but dispatches nothing. It backs the
// CLI and deployments without an external evaluator.
type LocalExecutor struct {
	log *logger.Logger
}

func NewLocalExecutor(log *logger.Logger) *LocalExecutor {
	return &LocalExecutor{log: log.Named("local_executor")}
}

func (e *LocalExecutor) Execute(ctx context.Context, exec ExecutionContext, rules repository.RuleProvider, metrics MetricProvider) (ExecutionResult, error) {
	ruleSet, samples, err := loadInputs(ctx, exec, rules, metrics)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("load execution inputs: %w", err)
	}

	e.log.InfoContext(ctx, "Rules loaded without external evaluation",
		logger.StringField("execution_id", exec.ExecutionID),
		logger.StringField("tenant_id", exec.TenantID),
		logger.IntField("rules", len(ruleSet)),
		logger.IntField("metric_samples", len(samples)),
	)
	return ExecutionResult{
		Status:         model.ExecutionStatusCompleted,
		RulesEvaluated: len(ruleSet),
		Metadata: map[string]interface{}{
			"executor":      "local",
			"metricSamples": len(samples),
		},
	}, nil
}
