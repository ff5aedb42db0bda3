package cmd

import (
	"context"
	"fmt"
	"golang-alerting/config"
	"golang-alerting/internal/repository"
	"golang-alerting/internal/service"
	"golang-alerting/internal/strategy"
	"golang-alerting/pkg/cache"
	"golang-alerting/pkg/clock"
	"golang-alerting/pkg/httpclient"
	"golang-alerting/pkg/logger"
	"golang-alerting/pkg/metrics"
	"golang-alerting/pkg/postgres"
	"golang-alerting/pkg/ratelimit"
	"golang-alerting/pkg/utils"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type AppDependency struct {
	db        *postgres.DB
	cfg       *config.Config
	log       *logger.Logger
	validator *goValidator.Validate
	echo      *echo.Echo
	cache     cache.Cache
	metrics   *metrics.Collector
	limiter   *ratelimit.LimiterStore
	clock     clock.Clock
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}
	if cfg.Alert.Enabled && cfg.Alert.WebhookURL != "" {
		alertClient := httpclient.New(cfg.Alert.WebhookURL, cfg.Alert.Timeout, httpclient.Options{})
		log = logger.WithAlertCore(log, alertClient, "", zapcore.ErrorLevel, cfg.Alert.Timeout)
	}

	// the database is only needed when history lives in postgres
	var db *postgres.DB
	if cfg.History.Driver == repository.HistoryDriverPostgres {
		db, err = postgres.NewDB(cfg.DB, log)
		if err != nil {
			log.Error("Failed to connect to database", zap.Error(err))
			return nil, err
		}
	}

	e := echo.New()
	e.HideBanner = true
	return &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: utils.NewValidator(),
		db:        db,
		echo:      e,
		cache:     cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
		metrics:   metrics.NewCollector(),
		limiter:   ratelimit.NewLimiterStore(rate.Limit(cfg.API.RateLimitPerSecond), cfg.API.RateLimitBurst, cfg.API.RateLimitExpiresIn),
		clock:     clock.System(),
	}, nil
}

// executor picks the webhook executor when an evaluator URL is configured.
func (d *AppDependency) executor() strategy.Executor {
	if d.cfg.Executor.BaseURL == "" {
		return strategy.NewLocalExecutor(d.log)
	}
	client := httpclient.New(d.cfg.Executor.BaseURL, d.cfg.Executor.Timeout, httpclient.Options{
		BearerToken: d.cfg.Executor.BearerToken,
		RetryCount:  d.cfg.Executor.RetryCount,
	})
	return strategy.NewWebhookExecutor(client, d.cfg.Executor.Endpoint, d.log)
}

// NewServices builds the repository and service layers on top of d.
func (d *AppDependency) NewServices() (*service.Service, error) {
	var gormDB *gorm.DB
	if d.db != nil {
		gormDB = d.db.DB
	}
	repo, err := repository.NewRepository(d.cfg, gormDB, d.cache, d.validator, d.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	return service.NewService(d.cfg, d.log, repo, d.clock, d.executor(), d.validator, d.metrics), nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	_ = d.log.Sync()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
