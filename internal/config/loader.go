package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load decodes the TOML file at path over Defaults, loads .env from the
// working directory if present, and applies EMOJIBOT_* overrides. An empty
// path skips the file. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	normalise(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose EMOJIBOT_* variable is set and
// parses. Credentials normally arrive this way.
func applyEnvOverrides(cfg *Config) {
	// Top-level
	setStr(&cfg.Mode, "EMOJIBOT_MODE")
	setStr(&cfg.LogLevel, "EMOJIBOT_LOG_LEVEL")

	// Exchange
	setStr(&cfg.Exchange.BaseURL, "EMOJIBOT_EXCHANGE_BASE_URL")
	setStr(&cfg.Exchange.TeamName, "EMOJIBOT_EXCHANGE_TEAM_NAME")
	setStr(&cfg.Exchange.TeamID, "EMOJIBOT_EXCHANGE_TEAM_ID")
	setStr(&cfg.Exchange.APIKey, "EMOJIBOT_EXCHANGE_API_KEY")
	setDuration(&cfg.Exchange.RequestTimeout, "EMOJIBOT_EXCHANGE_REQUEST_TIMEOUT")
	setFloat64(&cfg.Exchange.RequestsPerSecond, "EMOJIBOT_EXCHANGE_REQUESTS_PER_SECOND")
	setStr(&cfg.Exchange.TimeInForce, "EMOJIBOT_EXCHANGE_TIME_IN_FORCE")

	// Trading
	setStringSlice(&cfg.Trading.Symbols, "EMOJIBOT_TRADING_SYMBOLS")
	setDuration(&cfg.Trading.PollInterval, "EMOJIBOT_TRADING_POLL_INTERVAL")
	setInt64(&cfg.Trading.TradeQuantity, "EMOJIBOT_TRADING_TRADE_QUANTITY")
	setDecimal(&cfg.Trading.OrderBudget, "EMOJIBOT_TRADING_ORDER_BUDGET")
	setDecimal(&cfg.Trading.MinSpread, "EMOJIBOT_TRADING_MIN_SPREAD")
	setInt64(&cfg.Trading.MinLiquidity, "EMOJIBOT_TRADING_MIN_LIQUIDITY")
	setDecimal(&cfg.Trading.SpreadCapture, "EMOJIBOT_TRADING_SPREAD_CAPTURE")
	setInt64(&cfg.Trading.IndustrialQuantity, "EMOJIBOT_TRADING_INDUSTRIAL_QUANTITY_THRESHOLD")
	setInt64(&cfg.Trading.IndustrialOrderCount, "EMOJIBOT_TRADING_INDUSTRIAL_ORDER_COUNT")
	setInt64(&cfg.Trading.IndustrialOrderCap, "EMOJIBOT_TRADING_INDUSTRIAL_ORDER_CAP")
	setInt64(&cfg.Trading.ReportEvery, "EMOJIBOT_TRADING_REPORT_EVERY")
	setInt(&cfg.Trading.OrdersPerSecond, "EMOJIBOT_TRADING_ORDERS_PER_SECOND")

	// Redis
	setBool(&cfg.Redis.Enabled, "EMOJIBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "EMOJIBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EMOJIBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EMOJIBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EMOJIBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EMOJIBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EMOJIBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "EMOJIBOT_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.LockTTL, "EMOJIBOT_REDIS_LOCK_TTL")
	setInt64(&cfg.Redis.HistoryLen, "EMOJIBOT_REDIS_HISTORY_LEN")

	// Postgres
	setBool(&cfg.Postgres.Enabled, "EMOJIBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "EMOJIBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "EMOJIBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "EMOJIBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "EMOJIBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "EMOJIBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "EMOJIBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "EMOJIBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "EMOJIBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "EMOJIBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "EMOJIBOT_POSTGRES_RUN_MIGRATIONS")

	// S3
	setBool(&cfg.S3.Enabled, "EMOJIBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "EMOJIBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EMOJIBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "EMOJIBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EMOJIBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EMOJIBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "EMOJIBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "EMOJIBOT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "EMOJIBOT_S3_PREFIX")

	// Server
	setBool(&cfg.Server.Enabled, "EMOJIBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "EMOJIBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "EMOJIBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "EMOJIBOT_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RequestsPerMinute, "EMOJIBOT_SERVER_REQUESTS_PER_MINUTE")
	setInt64(&cfg.Server.ReplayEvents, "EMOJIBOT_SERVER_REPLAY_EVENTS")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "EMOJIBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "EMOJIBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "EMOJIBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "EMOJIBOT_NOTIFY_EVENTS")
}

// normalise canonicalises case-insensitive enum fields and trims symbols.
func normalise(cfg *Config) {
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Exchange.TimeInForce = strings.ToUpper(strings.TrimSpace(cfg.Exchange.TimeInForce))
	for i, s := range cfg.Trading.Symbols {
		cfg.Trading.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
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
