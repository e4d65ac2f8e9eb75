// Package config defines the top-level configuration for the basisdesk
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BASISDESK_* environment
// variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Trading  TradingConfig  `toml:"trading"`
	Timing   TimingConfig   `toml:"timing"`
	Journal  JournalConfig  `toml:"journal"`
	Redis    RedisConfig    `toml:"redis"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the execution engine endpoints and credentials.
type EngineConfig struct {
	BaseURL   string `toml:"base_url"`
	WsURL     string `toml:"ws_url"`
	AuthToken string `toml:"auth_token"`
}

// TradingConfig holds the order validation and fee parameters.
type TradingConfig struct {
	MaxLeverage float64 `toml:"max_leverage"`
	SpotFeeRate float64 `toml:"spot_fee_rate"`
	PerpFeeRate float64 `toml:"perp_fee_rate"`
}

// TimingConfig holds the poll, reconnect, and display timing knobs.
type TimingConfig struct {
	JobPollInterval    duration `toml:"job_poll_interval"`
	ReconnectBaseDelay duration `toml:"reconnect_base_delay"`
	RevealStagger      duration `toml:"reveal_stagger"`
	ResultStagger      duration `toml:"result_stagger"`
	RefreshInterval    duration `toml:"refresh_interval"`
}

// JournalConfig holds PostgreSQL connection parameters for the trade journal.
type JournalConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the rates mirror.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NotifyConfig holds outbound notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			BaseURL: "https://engine.basisdesk.io/v1",
			WsURL:   "wss://engine.basisdesk.io/v1/stream",
		},
		Trading: TradingConfig{
			MaxLeverage: 5.0,
			SpotFeeRate: 0.0015,
			PerpFeeRate: 0.00035,
		},
		Timing: TimingConfig{
			JobPollInterval:    duration{2 * time.Second},
			ReconnectBaseDelay: duration{3 * time.Second},
			RevealStagger:      duration{100 * time.Millisecond},
			ResultStagger:      duration{200 * time.Millisecond},
			RefreshInterval:    duration{5 * time.Minute},
		},
		Journal: JournalConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "basisdesk",
			User:          "basisdesk",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Notify: NotifyConfig{
			Events: []string{"error", "channel_gave_up"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine endpoints
	if c.Engine.BaseURL == "" {
		errs = append(errs, "engine: base_url must not be empty")
	}
	if c.Engine.WsURL == "" {
		errs = append(errs, "engine: ws_url must not be empty")
	}

	// Trading
	if c.Trading.MaxLeverage <= 1 {
		errs = append(errs, fmt.Sprintf("trading: max_leverage must be > 1, got %g", c.Trading.MaxLeverage))
	}
	if c.Trading.SpotFeeRate < 0 || c.Trading.SpotFeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("trading: spot_fee_rate must be in [0, 1), got %g", c.Trading.SpotFeeRate))
	}
	if c.Trading.PerpFeeRate < 0 || c.Trading.PerpFeeRate >= 1 {
		errs = append(errs, fmt.Sprintf("trading: perp_fee_rate must be in [0, 1), got %g", c.Trading.PerpFeeRate))
	}

	// Timing
	if c.Timing.JobPollInterval.Duration <= 0 {
		errs = append(errs, "timing: job_poll_interval must be positive")
	}
	if c.Timing.ReconnectBaseDelay.Duration <= 0 {
		errs = append(errs, "timing: reconnect_base_delay must be positive")
	}
	if c.Timing.RefreshInterval.Duration <= 0 {
		errs = append(errs, "timing: refresh_interval must be positive")
	}

	// Journal
	if c.Journal.Enabled {
		if strings.TrimSpace(c.Journal.DSN) == "" {
			if c.Journal.Host == "" {
				errs = append(errs, "journal: host must not be empty (or set journal.dsn)")
			}
			if c.Journal.Port <= 0 || c.Journal.Port > 65535 {
				errs = append(errs, fmt.Sprintf("journal: port must be 1-65535, got %d", c.Journal.Port))
			}
			if c.Journal.Database == "" {
				errs = append(errs, "journal: database must not be empty")
			}
		}
		if c.Journal.PoolMaxConns < 1 {
			errs = append(errs, "journal: pool_max_conns must be >= 1")
		}
		if c.Journal.PoolMinConns < 0 {
			errs = append(errs, "journal: pool_min_conns must be >= 0")
		}
		if c.Journal.PoolMinConns > c.Journal.PoolMaxConns {
			errs = append(errs, "journal: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Telegram needs both token and chat id.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
