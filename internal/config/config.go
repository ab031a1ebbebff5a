package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeProduction = "production"
	ModeTest       = "test"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	Mode            string `mapstructure:"elink_mode"`
	ProductionURL   string `mapstructure:"elink_production_url"`
	TestURL         string `mapstructure:"elink_test_url"`
	Username        string `mapstructure:"elink_username"`
	Password        string `mapstructure:"elink_password"`
	SequenceWrapper bool   `mapstructure:"sequence_wrapper"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "elink")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("elink_mode", ModeProduction)
	v.SetDefault("elink_production_url", "https://www.osti.gov/elink/")
	v.SetDefault("elink_test_url", "https://www.osti.gov/elinktest/")
	v.SetDefault("elink_username", "")
	v.SetDefault("elink_password", "")
	v.SetDefault("sequence_wrapper", false)
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/ledger.db")
	v.SetDefault("storage_ttl_seconds", int64((90*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode != ModeProduction && cfg.Mode != ModeTest {
		return nil, fmt.Errorf("invalid elink_mode %q (expected %q or %q)", cfg.Mode, ModeProduction, ModeTest)
	}
	if strings.TrimSpace(cfg.ProductionURL) == "" || strings.TrimSpace(cfg.TestURL) == "" {
		return nil, fmt.Errorf("elink_production_url and elink_test_url must not be empty")
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}

// TestMode reports whether the ELINK test endpoint is selected.
func (c *Config) TestMode() bool {
	return c != nil && c.Mode == ModeTest
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "******"
	}
	return c
}

// String keeps the password out of formatted output.
func (c Config) String() string {
	return fmt.Sprintf("%+v", configFields(c.Redacted()))
}

// configFields has Config's fields but not its methods, so %+v does not recurse into String.
type configFields Config
