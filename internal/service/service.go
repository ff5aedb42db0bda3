package service

import (
	"context"
	"golang-alerting/config"
	"golang-alerting/internal/dto"
	"golang-alerting/internal/repository"
	"golang-alerting/internal/strategy"
	"golang-alerting/pkg/clock"
	"golang-alerting/pkg/logger"
	"golang-alerting/pkg/metrics"
	"time"

	"github.com/go-playground/validator/v10"
)

type cacheClearer interface {
	ClearCache(tenantIDs ...string)
}

type Service struct {
	log              *logger.Logger
	clock            clock.Clock
	fixtures         []cacheClearer
	ScheduleRunner   ScheduleRunner
	ExecutionTrigger ExecutionTrigger
	History          repository.HistoryRepository
	Rules            repository.RuleProvider
	Metrics          strategy.MetricProvider
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	clk clock.Clock,
	executor strategy.Executor,
	validate *validator.Validate,
	collector *metrics.Collector,
) *Service {
	return &Service{
		log:              log,
		clock:            clk,
		fixtures:         []cacheClearer{repo.ScheduleProvider, repo.RuleProvider},
		ScheduleRunner:   NewScheduleRunner(cfg.Runner, log, repo.ScheduleProvider, repo.HistoryRepo, collector),
		ExecutionTrigger: NewExecutionTrigger(cfg.Trigger, log, clk, repo.HistoryRepo, executor, validate, collector),
		History:          repo.HistoryRepo,
		Rules:            repo.RuleProvider,
		Metrics:          repo.MetricProvider,
	}
}

// Now returns override when set, otherwise the service clock.
func (s *Service) Now(override *time.Time) time.Time {
	return clock.NowOr(s.clock, override).UTC()
}

// Run ticks tenantID and starts every admitted schedule.
func (s *Service) Run(ctx context.Context, tenantID string, now time.Time, opts TickOptions) dto.RunResult {
	return TickAndTrigger(ctx, s.log, s.ScheduleRunner, s.ExecutionTrigger, s.Rules, s.Metrics, tenantID, now, opts)
}

// StartExecution starts a single execution with the configured providers.
func (s *Service) StartExecution(ctx context.Context, req dto.StartExecutionRequest) dto.StartResult {
	return s.ExecutionTrigger.StartExecution(ctx, req, s.Rules, s.Metrics)
}

// ReloadFixtures drops cached fixtures for tenantIDs, or for every tenant
// when none are given.
func (s *Service) ReloadFixtures(tenantIDs ...string) {
	for _, f := range s.fixtures {
		f.ClearCache(tenantIDs...)
	}
	s.log.Info("Fixture cache cleared", logger.Field("tenant_ids", tenantIDs))
}
