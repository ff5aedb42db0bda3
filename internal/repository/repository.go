package repository

import (
	"fmt"
	"golang-alerting/config"
	"golang-alerting/pkg/cache"
	"golang-alerting/pkg/httpclient"
	"golang-alerting/pkg/logger"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	HistoryDriverMemory   = "memory"
	HistoryDriverPostgres = "postgres"
)

type Repository struct {
	HistoryRepo      HistoryRepository
	ScheduleProvider *FixtureScheduleProvider
	RuleProvider     *FixtureRuleProvider
	MetricProvider   *HTTPMetricProvider
}

// NewRepository wires the stores selected by cfg. db may be nil unless the
// postgres history driver is configured.
func NewRepository(cfg *config.Config, db *gorm.DB, c cache.Cache, v *validator.Validate, log *logger.Logger) (*Repository, error) {
	opts := MemoryHistoryOptions{
		MaxRecordAge:        cfg.History.MaxRecordAge,
		MaxRecordsPerTenant: cfg.History.MaxRecordsPerTenant,
	}

	var history HistoryRepository
	switch cfg.History.Driver {
	case HistoryDriverMemory, "":
		history = NewMemoryHistoryRepository(opts)
	case HistoryDriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("history driver %q requires a database connection", cfg.History.Driver)
		}
		history = NewPostgresHistoryRepository(db, NewUnitOfWork(db), opts)
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.History.Driver)
	}

	metricClient := httpclient.New(cfg.MetricSource.BaseURL, cfg.MetricSource.Timeout, httpclient.Options{
		BearerToken: cfg.MetricSource.BearerToken,
	})

	return &Repository{
		HistoryRepo:      history,
		ScheduleProvider: NewFixtureScheduleProvider(cfg.Fixtures.Dir, c, cfg.Cache.DefaultExpiration, v, log),
		RuleProvider:     NewFixtureRuleProvider(cfg.Fixtures.Dir, c, cfg.Cache.DefaultExpiration, v, log),
		MetricProvider:   NewHTTPMetricProvider(metricClient, cfg.MetricSource.Endpoint, log),
	}, nil
}
