package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName          string        `mapstructure:"app_name"`
	Env              string        `mapstructure:"app_env"`
	LogLevel         string        `mapstructure:"log_level"`
	BackendURLRaw    string        `mapstructure:"backend_url"`
	RequestTimeoutMS int64         `mapstructure:"request_timeout_ms"`
	PollIntervalMS   int64         `mapstructure:"poll_interval_ms"`
	RequestTimeout   time.Duration `mapstructure:"-"`
	PollInterval     time.Duration `mapstructure:"-"`

	JournalType            string        `mapstructure:"journal_type"`
	JournalPath            string        `mapstructure:"journal_path"`
	JournalTTLSeconds      int64         `mapstructure:"journal_ttl_seconds"`
	JournalCleanupSeconds  int64         `mapstructure:"journal_cleanup_interval_seconds"`
	JournalTTL             time.Duration `mapstructure:"-"`
	JournalCleanupInterval time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`
	StubAddr       string `mapstructure:"stub_addr"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "frameseg")
	v.SetDefault("app_env", segclient.EnvDevelopment)
	v.SetDefault("log_level", "info")
	v.SetDefault("backend_url", "")
	v.SetDefault("request_timeout_ms", segclient.DefaultTimeout.Milliseconds())
	v.SetDefault("poll_interval_ms", 2000)
	v.SetDefault("journal_type", "bbolt")
	v.SetDefault("journal_path", "./data/tasks.db")
	v.SetDefault("journal_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("journal_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("publishers_file", "")
	v.SetDefault("stub_addr", ":8000")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RequestTimeoutMS <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_ms (must be positive milliseconds)")
	}
	if cfg.PollIntervalMS <= 0 {
		return nil, fmt.Errorf("invalid poll_interval_ms (must be positive milliseconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	cfg.PollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond

	if cfg.JournalTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid journal_ttl_seconds (must be positive seconds)")
	}
	if cfg.JournalCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid journal_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.JournalTTL = time.Duration(cfg.JournalTTLSeconds) * time.Second
	cfg.JournalCleanupInterval = time.Duration(cfg.JournalCleanupSeconds) * time.Second

	return &cfg, nil
}

// BackendURL returns the explicit backend_url when set, otherwise the base
// URL implied by app_env.
func (c *Config) BackendURL() string {
	if c == nil {
		return segclient.BaseURLFor("")
	}
	if u := strings.TrimSpace(c.BackendURLRaw); u != "" {
		return u
	}
	return segclient.BaseURLFor(c.Env)
}
