package strategy

import (
	"context"
	"fmt"
	"golang-alerting/internal/model"
	"golang-alerting/internal/repository"
	"golang-alerting/pkg/httpclient"
	"golang-alerting/pkg/logger"
	"strings"
)

type webhookRequest struct {
	Execution ExecutionContext     `json:"execution"`
	Rules     []model.Rule         `json:"rules"`
	Metrics   []model.MetricSample `json:"metrics"`
}

type webhookResponse struct {
	Status          string                 `json:"status"`
	RulesEvaluated  int                    `json:"rulesEvaluated"`
	AlertsGenerated int                    `json:"alertsGenerated"`
	FailureReason   string                 `json:"failureReason"`
	FailureCode     string                 `json:"failureCode"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// WebhookExecutor posts the execution context, the tenant's rules and the
// referenced metrics to an external rule evaluator.
type WebhookExecutor struct {
	client   httpclient.HTTPClient
	endpoint string
	log      *logger.Logger
}

func NewWebhookExecutor(client httpclient.HTTPClient, endpoint string, log *logger.Logger) *WebhookExecutor {
	return &WebhookExecutor{
		client:   client,
		endpoint: endpoint,
		log:      log.Named("webhook_executor"),
	}
}

func (e *WebhookExecutor) Execute(ctx context.Context, exec ExecutionContext, rules repository.RuleProvider, metrics MetricProvider) (ExecutionResult, error) {
	ruleSet, samples, err := loadInputs(ctx, exec, rules, metrics)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("load execution inputs: %w", err)
	}
	if len(ruleSet) == 0 {
		e.log.InfoContext(ctx, "No enabled rules, skipping evaluator call",
			logger.StringField("execution_id", exec.ExecutionID),
			logger.StringField("tenant_id", exec.TenantID),
		)
		return ExecutionResult{
			Status:   model.ExecutionStatusCompleted,
			Metadata: map[string]interface{}{"skipped": "no enabled rules"},
		}, nil
	}

	var out webhookResponse
	resp, err := e.client.Post(ctx, e.endpoint, webhookRequest{
		Execution: exec,
		Rules:     ruleSet,
		Metrics:   samples,
	}, map[string]string{
		"X-Execution-ID": exec.ExecutionID,
		"X-Tenant-ID":    exec.TenantID,
	}, &out)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("call rule evaluator: %w", err)
	}
	if !resp.IsSuccess() {
		return ExecutionResult{}, fmt.Errorf("rule evaluator returned status %d", resp.StatusCode)
	}

	result := ExecutionResult{
		RulesEvaluated:  out.RulesEvaluated,
		AlertsGenerated: out.AlertsGenerated,
		FailureReason:   out.FailureReason,
		FailureCode:     out.FailureCode,
		Metadata:        out.Metadata,
	}
	switch model.ExecutionStatus(strings.ToUpper(out.Status)) {
	case model.ExecutionStatusCompleted:
		result.Status = model.ExecutionStatusCompleted
	case model.ExecutionStatusFailed:
		result.Status = model.ExecutionStatusFailed
		if result.FailureReason == "" {
			result.FailureReason = "rule evaluator reported failure"
		}
	default:
		return ExecutionResult{}, fmt.Errorf("rule evaluator returned unknown status %q", out.Status)
	}

	e.log.DebugContext(ctx, "Rule evaluator responded",
		logger.StringField("execution_id", exec.ExecutionID),
		logger.StringField("status", string(result.Status)),
		logger.IntField("rules_evaluated", result.RulesEvaluated),
		logger.IntField("alerts_generated", result.AlertsGenerated),
	)
	return result, nil
}
