package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BASISDESK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BASISDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStr(&cfg.Engine.BaseURL, "BASISDESK_ENGINE_BASE_URL")
	setStr(&cfg.Engine.WsURL, "BASISDESK_ENGINE_WS_URL")
	setStr(&cfg.Engine.AuthToken, "BASISDESK_ENGINE_AUTH_TOKEN")

	// ── Trading ──
	setFloat64(&cfg.Trading.MaxLeverage, "BASISDESK_TRADING_MAX_LEVERAGE")
	setFloat64(&cfg.Trading.SpotFeeRate, "BASISDESK_TRADING_SPOT_FEE_RATE")
	setFloat64(&cfg.Trading.PerpFeeRate, "BASISDESK_TRADING_PERP_FEE_RATE")

	// ── Timing ──
	setDuration(&cfg.Timing.JobPollInterval, "BASISDESK_TIMING_JOB_POLL_INTERVAL")
	setDuration(&cfg.Timing.ReconnectBaseDelay, "BASISDESK_TIMING_RECONNECT_BASE_DELAY")
	setDuration(&cfg.Timing.RevealStagger, "BASISDESK_TIMING_REVEAL_STAGGER")
	setDuration(&cfg.Timing.ResultStagger, "BASISDESK_TIMING_RESULT_STAGGER")
	setDuration(&cfg.Timing.RefreshInterval, "BASISDESK_TIMING_REFRESH_INTERVAL")

	// ── Journal ──
	setBool(&cfg.Journal.Enabled, "BASISDESK_JOURNAL_ENABLED")
	setStr(&cfg.Journal.DSN, "BASISDESK_JOURNAL_DSN")
	setStr(&cfg.Journal.Host, "BASISDESK_JOURNAL_HOST")
	setInt(&cfg.Journal.Port, "BASISDESK_JOURNAL_PORT")
	setStr(&cfg.Journal.Database, "BASISDESK_JOURNAL_DATABASE")
	setStr(&cfg.Journal.User, "BASISDESK_JOURNAL_USER")
	setStr(&cfg.Journal.Password, "BASISDESK_JOURNAL_PASSWORD")
	setStr(&cfg.Journal.SSLMode, "BASISDESK_JOURNAL_SSLMODE")
	setInt(&cfg.Journal.PoolMaxConns, "BASISDESK_JOURNAL_POOL_MAX_CONNS")
	setInt(&cfg.Journal.PoolMinConns, "BASISDESK_JOURNAL_POOL_MIN_CONNS")
	setBool(&cfg.Journal.RunMigrations, "BASISDESK_JOURNAL_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BASISDESK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BASISDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BASISDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BASISDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BASISDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BASISDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BASISDESK_REDIS_TLS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BASISDESK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BASISDESK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BASISDESK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BASISDESK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "BASISDESK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
