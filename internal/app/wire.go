package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joasgard/basisdesk/internal/cache/redis"
	"github.com/joasgard/basisdesk/internal/config"
	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/jobs"
	"github.com/joasgard/basisdesk/internal/journal/postgres"
	"github.com/joasgard/basisdesk/internal/notify"
	"github.com/joasgard/basisdesk/internal/platform/engine"
	"github.com/joasgard/basisdesk/internal/preflight"
	"github.com/joasgard/basisdesk/internal/push"
	"github.com/joasgard/basisdesk/internal/service"
	"github.com/joasgard/basisdesk/internal/store"
)

// Dependencies bundles every component the application loops need to operate.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Engine    *engine.Client
	Positions *store.Positions
	Rates     *store.Rates
	Journal   domain.JournalStore // nil when persistence is disabled
	Center    *notify.Center
	Tracker   *jobs.Tracker
	Sequencer *preflight.Sequencer
	Channel   *push.Channel
	Desk      *service.Desk
}

// engineValidator adapts the engine client's batched preflight endpoint to
// the sequencer's Validator interface.
type engineValidator struct {
	client *engine.Client
}

func (v engineValidator) Validate(ctx context.Context, asset string, leverage, sizeUSD float64) ([]domain.CheckResult, error) {
	resp, err := v.client.Preflight(ctx, asset, leverage, sizeUSD)
	if err != nil {
		return nil, err
	}
	return resp.Results(), nil
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Engine client ---
	deps.Engine = engine.NewClient(cfg.Engine.BaseURL)
	if cfg.Engine.AuthToken != "" {
		deps.Engine.SetToken(cfg.Engine.AuthToken)
	}

	// --- In-memory stores ---
	deps.Positions = store.NewPositions()
	deps.Rates = store.NewRates()

	// --- PostgreSQL trade journal (optional) ---
	if cfg.Journal.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Journal.DSN,
			Host:     cfg.Journal.Host,
			Port:     cfg.Journal.Port,
			Database: cfg.Journal.Database,
			User:     cfg.Journal.User,
			Password: cfg.Journal.Password,
			SSLMode:  cfg.Journal.SSLMode,
			MaxConns: cfg.Journal.PoolMaxConns,
			MinConns: cfg.Journal.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Journal.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Journal = postgres.NewJournalStore(pgClient.Pool())
	}

	// --- Redis rates mirror (optional) ---
	var rateCache domain.RateCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		rateCache = redis.NewRateCache(redisClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	var outbound *notify.Notifier
	if len(senders) > 0 {
		outbound = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}
	deps.Center = notify.NewCenter(outbound, logger)
	if deps.Journal != nil {
		deps.Center.SetJournal(deps.Journal)
	}
	closers = append(closers, deps.Center.Close)

	// --- Job tracker ---
	deps.Tracker = jobs.NewTracker(
		deps.Engine,
		deps.Positions,
		deps.Center,
		deps.Journal,
		cfg.Timing.JobPollInterval.Duration,
		logger,
	)
	closers = append(closers, deps.Tracker.Close)

	// --- Preflight sequencer ---
	deps.Sequencer = preflight.NewSequencer(
		engineValidator{client: deps.Engine},
		deps.Center,
		cfg.Timing.RevealStagger.Duration,
		cfg.Timing.ResultStagger.Duration,
		logger,
	)

	// --- Push channel ---
	wsURL := cfg.Engine.WsURL
	token := cfg.Engine.AuthToken
	dial := func(ctx context.Context) (push.Transport, error) {
		return engine.DialPush(ctx, wsURL, token)
	}
	deps.Channel = push.NewChannel(
		dial,
		deps.Positions,
		deps.Rates,
		rateCache,
		deps.Center,
		cfg.Timing.ReconnectBaseDelay.Duration,
		logger,
	)
	closers = append(closers, deps.Channel.Close)

	// --- Desk facade ---
	deps.Desk = service.NewDesk(
		deps.Engine,
		deps.Tracker,
		deps.Sequencer,
		deps.Positions,
		deps.Center,
		service.Config{
			MaxLeverage: cfg.Trading.MaxLeverage,
			SpotFeeRate: cfg.Trading.SpotFeeRate,
			PerpFeeRate: cfg.Trading.PerpFeeRate,
		},
		logger,
	)

	return deps, cleanup, nil
}
