// Package config defines the emojibot configuration: a TOML file layered
// over built-in defaults, then EMOJIBOT_* environment overrides.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/emojibot/internal/domain"
	"github.com/alanyoungcy/emojibot/internal/strategy"
)

// Config is the root configuration structure.
type Config struct {
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	Exchange ExchangeConfig `toml:"exchange"`
	Trading  TradingConfig  `toml:"trading"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
}

// ExchangeConfig holds the exchange endpoint and team identity.
type ExchangeConfig struct {
	BaseURL           string   `toml:"base_url"`
	TeamName          string   `toml:"team_name"`
	TeamID            string   `toml:"team_id"`
	APIKey            string   `toml:"api_key"`
	RequestTimeout    duration `toml:"request_timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	TimeInForce       string   `toml:"time_in_force"`
}

// Credentials returns the team identity attached to every request.
func (e ExchangeConfig) Credentials() domain.Credentials {
	return domain.Credentials{TeamID: e.TeamID, APIKey: e.APIKey}
}

// TradingConfig holds the loop settings and decision thresholds.
type TradingConfig struct {
	Symbols              []string        `toml:"symbols"`
	PollInterval         duration        `toml:"poll_interval"`
	TradeQuantity        int64           `toml:"trade_quantity"`
	OrderBudget          decimal.Decimal `toml:"order_budget"`
	MinSpread            decimal.Decimal `toml:"min_spread"`
	MinLiquidity         int64           `toml:"min_liquidity"`
	SpreadCapture        decimal.Decimal `toml:"spread_capture"`
	IndustrialQuantity   int64           `toml:"industrial_quantity_threshold"`
	IndustrialOrderCount int64           `toml:"industrial_order_count"`
	IndustrialOrderCap   int64           `toml:"industrial_order_cap"`
	ReportEvery          int64           `toml:"report_every"`
	OrdersPerSecond      int             `toml:"orders_per_second"`
}

// Params converts the thresholds into decision engine parameters.
func (t TradingConfig) Params() strategy.Params {
	return strategy.Params{
		MinSpread:            t.MinSpread,
		MinLiquidity:         t.MinLiquidity,
		SpreadCapture:        t.SpreadCapture,
		IndustrialQuantity:   t.IndustrialQuantity,
		IndustrialOrderCount: t.IndustrialOrderCount,
		IndustrialCap:        t.IndustrialOrderCap,
		OrderBudget:          t.OrderBudget,
	}
}

// RedisConfig holds Redis connection parameters. When disabled, the bus and
// rate limiter run in process.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	LockTTL    duration `toml:"lock_ttl"`
	// HistoryLen caps each bus channel's history stream; 0 disables it.
	HistoryLen int64 `toml:"history_len"`
}

// PostgresConfig holds the journal database connection.
type PostgresConfig struct {
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

// S3Config holds the report archive location.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig holds the status server parameters.
type ServerConfig struct {
	Enabled           bool     `toml:"enabled"`
	Port              int      `toml:"port"`
	APIKey            string   `toml:"api_key"`
	CORSOrigins       []string `toml:"cors_origins"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	// ReplayEvents is how many recent events per channel a new WebSocket
	// client receives when the bus keeps history.
	ReplayEvents int64 `toml:"replay_events"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML strings like "2s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration. It matches
// config.example.toml.
func Defaults() Config {
	params := strategy.DefaultParams()
	return Config{
		Mode:     "trade",
		LogLevel: "info",
		Exchange: ExchangeConfig{
			BaseURL:           "http://localhost:8080",
			RequestTimeout:    duration{10 * time.Second},
			RequestsPerSecond: 10,
			TimeInForce:       string(domain.TimeInForceGTC),
		},
		Trading: TradingConfig{
			Symbols:              []string{"ROCKET", "TACO", "PIZZA", "FIRE", "UNICORN", "GHOST"},
			PollInterval:         duration{2 * time.Second},
			TradeQuantity:        10,
			OrderBudget:          params.OrderBudget,
			MinSpread:            params.MinSpread,
			MinLiquidity:         params.MinLiquidity,
			SpreadCapture:        params.SpreadCapture,
			IndustrialQuantity:   params.IndustrialQuantity,
			IndustrialOrderCount: params.IndustrialOrderCount,
			IndustrialOrderCap:   params.IndustrialCap,
			ReportEvery:          10,
			OrdersPerSecond:      5,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "emojibot",
			LockTTL:    duration{30 * time.Second},
			HistoryLen: 10000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "emojibot",
			User:          "emojibot",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
			UseSSL:         true,
			Prefix:         "emojibot",
		},
		Server: ServerConfig{
			Port:              8090,
			RequestsPerMinute: 120,
			ReplayEvents:      20,
		},
	}
}

var validModes = map[string]bool{
	"trade":    true,
	"monitor":  true,
	"register": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validTimeInForce = map[string]bool{
	string(domain.TimeInForceGTC): true,
	string(domain.TimeInForceIOC): true,
	string(domain.TimeInForceFOK): true,
}

// Validate checks Config for invalid or missing values and returns one error
// listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, register)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchange
	if u, err := url.Parse(c.Exchange.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("exchange: base_url %q is not an absolute URL", c.Exchange.BaseURL))
	}
	switch mode {
	case "register":
		if strings.TrimSpace(c.Exchange.TeamName) == "" {
			errs = append(errs, "exchange: team_name is required for mode register")
		}
	case "trade", "monitor":
		if !c.Exchange.Credentials().Valid() {
			errs = append(errs, "exchange: team_id and api_key are required for mode "+mode+" (run mode register first)")
		}
	}
	if c.Exchange.RequestTimeout.Duration <= 0 {
		errs = append(errs, "exchange: request_timeout must be > 0")
	}
	if c.Exchange.RequestsPerSecond < 0 {
		errs = append(errs, "exchange: requests_per_second must be >= 0")
	}
	if !validTimeInForce[strings.ToUpper(c.Exchange.TimeInForce)] {
		errs = append(errs, fmt.Sprintf("exchange: unknown time_in_force %q (valid: GTC, IOC, FOK)", c.Exchange.TimeInForce))
	}

	// Trading
	t := c.Trading
	if len(t.Symbols) == 0 {
		errs = append(errs, "trading: symbols must not be empty")
	}
	seen := make(map[string]bool, len(t.Symbols))
	for _, s := range t.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "trading: symbols must not contain empty entries")
			continue
		}
		if seen[s] {
			errs = append(errs, fmt.Sprintf("trading: duplicate symbol %q", s))
		}
		seen[s] = true
	}
	if t.PollInterval.Duration <= 0 {
		errs = append(errs, "trading: poll_interval must be > 0")
	}
	if t.TradeQuantity <= 0 {
		errs = append(errs, "trading: trade_quantity must be > 0")
	}
	if !t.OrderBudget.IsPositive() {
		errs = append(errs, "trading: order_budget must be > 0")
	}
	if t.MinSpread.IsNegative() {
		errs = append(errs, "trading: min_spread must be >= 0")
	}
	if t.MinLiquidity < 0 {
		errs = append(errs, "trading: min_liquidity must be >= 0")
	}
	if !t.SpreadCapture.IsPositive() || t.SpreadCapture.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "trading: spread_capture must be in (0, 1]")
	}
	if t.IndustrialQuantity < 0 || t.IndustrialOrderCount < 0 {
		errs = append(errs, "trading: industrial thresholds must be >= 0")
	}
	if t.IndustrialOrderCap <= 0 {
		errs = append(errs, "trading: industrial_order_cap must be > 0")
	}
	if t.ReportEvery < 0 {
		errs = append(errs, "trading: report_every must be >= 0")
	}
	if t.OrdersPerSecond < 0 {
		errs = append(errs, "trading: orders_per_second must be >= 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
		if c.Redis.HistoryLen < 0 {
			errs = append(errs, "redis: history_len must be >= 0")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		p := c.Postgres
		if strings.TrimSpace(p.DSN) == "" {
			if p.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if p.Port <= 0 || p.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", p.Port))
			}
			if p.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if p.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if p.PoolMinConns < 0 || p.PoolMinConns > p.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RequestsPerMinute < 0 {
		errs = append(errs, "server: requests_per_minute must be >= 0")
	}
	if c.Server.ReplayEvents < 0 {
		errs = append(errs, "server: replay_events must be >= 0")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
