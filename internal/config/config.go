package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer  string   `mapstructure:"AUTH_ISSUER"`
	AuthSecret  string   `mapstructure:"AUTH_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Billing knobs for the scheduled passes.
	RenewalMinPrice       string `mapstructure:"RENEWAL_MIN_PRICE"`
	RenewalNoticeDays     int    `mapstructure:"RENEWAL_NOTICE_DAYS"`
	RenewalAlternatePrice string `mapstructure:"RENEWAL_ALTERNATE_PRICE"`
	RenewalBatchLimit     int    `mapstructure:"RENEWAL_BATCH_LIMIT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("RENEWAL_MIN_PRICE", "0")
	v.SetDefault("RENEWAL_NOTICE_DAYS", 30)
	v.SetDefault("RENEWAL_BATCH_LIMIT", 500)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("RENEWAL_MIN_PRICE")
	v.BindEnv("RENEWAL_NOTICE_DAYS")
	v.BindEnv("RENEWAL_ALTERNATE_PRICE")
	v.BindEnv("RENEWAL_BATCH_LIMIT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := decimal.NewFromString(cfg.RenewalMinPrice); err != nil {
		return nil, fmt.Errorf("RENEWAL_MIN_PRICE must be a decimal: %w", err)
	}
	if !cfg.IsDev() && cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required outside development")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// MinPrice returns the per-month price floor for the re-pricing pass.
func (c *Config) MinPrice() decimal.Decimal {
	d, _ := decimal.NewFromString(c.RenewalMinPrice)
	return d
}
