package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/emojibot/internal/blob/s3"
	"github.com/alanyoungcy/emojibot/internal/cache/memory"
	"github.com/alanyoungcy/emojibot/internal/cache/redis"
	"github.com/alanyoungcy/emojibot/internal/config"
	"github.com/alanyoungcy/emojibot/internal/domain"
	"github.com/alanyoungcy/emojibot/internal/notify"
	"github.com/alanyoungcy/emojibot/internal/platform/exchange"
	"github.com/alanyoungcy/emojibot/internal/server/handler"
	"github.com/alanyoungcy/emojibot/internal/server/ws"
	"github.com/alanyoungcy/emojibot/internal/store/postgres"
)

// The Redis bus keeps per-channel history that the hub replays to new clients.
var _ ws.HistoryReader = (*redis.SignalBus)(nil)

// Dependencies bundles everything the run modes need. Optional backends are
// nil when disabled in config.
type Dependencies struct {
	Exchange *exchange.Client

	// Stores (postgres.enabled)
	OrderStore domain.OrderStore
	AuditStore domain.AuditStore

	// Redis when enabled, in-process otherwise. Locker is nil without Redis.
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus
	Locker      domain.Locker

	// Blob storage (s3.enabled)
	BlobWriter domain.BlobWriter

	Notifier *notify.Notifier

	// Health probes for the status server, by backend name.
	Checks map[string]handler.Pinger
}

// newExchangeClient builds the REST client from config.
func newExchangeClient(cfg *config.Config) *exchange.Client {
	return exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.Credentials(), cfg.Exchange.RequestTimeout.Duration).
		WithRateLimit(cfg.Exchange.RequestsPerSecond).
		WithTimeInForce(domain.TimeInForce(cfg.Exchange.TimeInForce))
}

// Wire constructs the concrete dependencies and returns them together with a
// cleanup function to call on shutdown. A backend that is enabled but
// unreachable is a fatal error.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Exchange: newExchangeClient(cfg),
		Checks:   make(map[string]handler.Pinger),
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Exchange.RequestTimeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.OrderStore = postgres.NewOrderStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient
	}

	// --- Redis, or the in-process fallback ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient).WithHistoryLen(cfg.Redis.HistoryLen)
		deps.Locker = redis.NewLockManager(redisClient)
		deps.Checks["redis"] = redisClient
	} else {
		bus := memory.NewSignalBus()
		closers = append(closers, bus.Close)
		deps.RateLimiter = memory.NewRateLimiter()
		deps.SignalBus = bus
	}

	// --- S3 report archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Checks["s3"] = handler.PingFunc(s3Client.Health)
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("postgres", deps.OrderStore != nil),
		slog.Bool("redis", deps.Locker != nil),
		slog.Bool("s3", deps.BlobWriter != nil),
		slog.Bool("notify", deps.Notifier.Enabled()),
	)

	return deps, cleanup, nil
}
