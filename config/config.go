package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       Logger    `mapstructure:"logger"`
	DB        Database  `mapstructure:"database"`
	API       API       `mapstructure:"api"`
	Cache     Cache     `mapstructure:"cache"`
	Data      Data      `mapstructure:"data"`
	Yahoo     Yahoo     `mapstructure:"yahoo_finance"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Backtest  Backtest  `mapstructure:"backtest"`
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
	Port int `mapstructure:"port"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// Data configures the local CSV price store and its auto-refresh behavior.
type Data struct {
	Dir             string        `mapstructure:"dir"`
	AutoRefresh     bool          `mapstructure:"auto_refresh"`
	RefreshCooldown time.Duration `mapstructure:"refresh_cooldown"`
}

type Yahoo struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
}

type Scheduler struct {
	RefreshCron    string `mapstructure:"refresh_cron"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

// Backtest holds the research-run defaults applied when a request leaves
// them unset.
type Backtest struct {
	ArtifactDir string `mapstructure:"artifact_dir"`
	Objective   string `mapstructure:"objective"`
	Concurrency int    `mapstructure:"concurrency"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	// A missing config file is fine, everything can come from env vars.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("cache.default_expiration", 5*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
	viper.SetDefault("data.dir", "data")
	viper.SetDefault("data.auto_refresh", true)
	viper.SetDefault("data.refresh_cooldown", 15*time.Minute)
	viper.SetDefault("yahoo_finance.base_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	viper.SetDefault("yahoo_finance.timeout", 30*time.Second)
	viper.SetDefault("yahoo_finance.max_request_per_minute", 30)
	viper.SetDefault("scheduler.refresh_cron", "0 18 * * 1-5")
	viper.SetDefault("scheduler.max_concurrency", 4)
	viper.SetDefault("backtest.artifact_dir", "artifacts")
	viper.SetDefault("backtest.objective", "sharpe")
	viper.SetDefault("backtest.concurrency", 4)
}
