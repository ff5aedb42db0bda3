package repository

import (
	"context"
	"fmt"
	"golang-alerting/internal/model"
	"golang-alerting/pkg/httpclient"
	"golang-alerting/pkg/logger"
	"strings"
	"time"
)

type metricResponse struct {
	Data []model.MetricSample `json:"data"`
}

// HTTPMetricProvider reads tenant metrics from an external metric source.
type HTTPMetricProvider struct {
	client   httpclient.HTTPClient
	endpoint string
	log      *logger.Logger
}

func NewHTTPMetricProvider(client httpclient.HTTPClient, endpoint string, log *logger.Logger) *HTTPMetricProvider {
	return &HTTPMetricProvider{
		client:   client,
		endpoint: endpoint,
		log:      log.Named("metric_source"),
	}
}

// GetMetrics fetches the latest samples named in names as of at.
func (p *HTTPMetricProvider) GetMetrics(ctx context.Context, tenantID string, names []string, at time.Time) ([]model.MetricSample, error) {
	if len(names) == 0 {
		return []model.MetricSample{}, nil
	}

	var result metricResponse
	resp, err := p.client.Get(ctx, p.endpoint, map[string]string{
		"tenant_id": tenantID,
		"names":     strings.Join(names, ","),
		"at":        at.UTC().Format(time.RFC3339),
	}, nil, &result)
	if err != nil {
		p.log.ErrorContext(ctx, "Metric source request failed",
			logger.StringField("tenant_id", tenantID),
			logger.ErrorField(err),
		)
		return nil, fmt.Errorf("fetch metrics for tenant %s: %w", tenantID, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch metrics for tenant %s: unexpected status %d", tenantID, resp.StatusCode)
	}
	if result.Data == nil {
		return []model.MetricSample{}, nil
	}
	return result.Data, nil
}
