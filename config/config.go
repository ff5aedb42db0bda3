package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger       `mapstructure:"logger"`
	DB           Database     `mapstructure:"database"`
	API          API          `mapstructure:"api"`
	History      History      `mapstructure:"history"`
	Runner       Runner       `mapstructure:"runner"`
	Trigger      Trigger      `mapstructure:"trigger"`
	Fixtures     Fixtures     `mapstructure:"fixtures"`
	Executor     Executor     `mapstructure:"executor"`
	MetricSource MetricSource `mapstructure:"metric_source"`
	Cache        Cache        `mapstructure:"cache"`
	Alert        Alert        `mapstructure:"alert"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port               int           `mapstructure:"port"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	RateLimitExpiresIn time.Duration `mapstructure:"rate_limit_expires_in"`
}

// History selects and sizes the execution history store.
type History struct {
	Driver              string        `mapstructure:"driver"` // memory | postgres
	MaxRecordAge        time.Duration `mapstructure:"max_record_age"`
	MaxRecordsPerTenant int           `mapstructure:"max_records_per_tenant"`
}

type Runner struct {
	MaxTriggers   int           `mapstructure:"max_triggers"`
	DefaultWindow time.Duration `mapstructure:"default_window"`
	RequestedBy   string        `mapstructure:"requested_by"`
}

type Trigger struct {
	MaxConcurrentPerTenant int           `mapstructure:"max_concurrent_per_tenant"`
	AllowDryRun            bool          `mapstructure:"allow_dry_run"`
	TerminalRetention      time.Duration `mapstructure:"terminal_retention"`
}

type Fixtures struct {
	Dir string `mapstructure:"dir"`
}

type Executor struct {
	BaseURL     string        `mapstructure:"base_url"`
	Endpoint    string        `mapstructure:"endpoint"`
	BearerToken string        `mapstructure:"bearer_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryCount  int           `mapstructure:"retry_count"`
}

type MetricSource struct {
	BaseURL     string        `mapstructure:"base_url"`
	Endpoint    string        `mapstructure:"endpoint"`
	BearerToken string        `mapstructure:"bearer_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type Alert struct {
	Enabled    bool          `mapstructure:"enabled"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit_per_second", 10)
	v.SetDefault("api.rate_limit_burst", 30)
	v.SetDefault("api.rate_limit_expires_in", 3*time.Minute)
	v.SetDefault("history.driver", "memory")
	v.SetDefault("history.max_record_age", 7*24*time.Hour)
	v.SetDefault("history.max_records_per_tenant", 10000)
	v.SetDefault("runner.max_triggers", 10)
	v.SetDefault("runner.default_window", 24*time.Hour)
	v.SetDefault("runner.requested_by", "schedule-runner")
	v.SetDefault("trigger.max_concurrent_per_tenant", 1)
	v.SetDefault("trigger.allow_dry_run", true)
	v.SetDefault("trigger.terminal_retention", time.Hour)
	v.SetDefault("fixtures.dir", "fixtures")
	v.SetDefault("executor.timeout", 30*time.Second)
	v.SetDefault("metric_source.timeout", 10*time.Second)
	// fixtures stay cached until an explicit clear
	v.SetDefault("cache.default_expiration", time.Duration(-1))
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
	v.SetDefault("alert.timeout", 5*time.Second)
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded:", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
