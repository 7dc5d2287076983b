package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() Config {
	cfg := Defaults()
	cfg.Exchange.TeamID = "team-1"
	cfg.Exchange.APIKey = "key-1"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "trade", cfg.Mode)
	assert.Len(t, cfg.Trading.Symbols, 6)
	assert.Equal(t, int64(10), cfg.Trading.ReportEvery)
	assert.True(t, cfg.Trading.MinSpread.Equal(decimal.RequireFromString("0.10")))
	assert.True(t, cfg.Trading.SpreadCapture.Equal(decimal.RequireFromString("0.30")))
	assert.Equal(t, int64(100), cfg.Trading.IndustrialQuantity)
	assert.Equal(t, int64(50), cfg.Trading.IndustrialOrderCap)
	assert.Equal(t, 10*time.Second, cfg.Exchange.RequestTimeout.Duration)
	assert.Equal(t, int64(10000), cfg.Redis.HistoryLen)
	assert.Equal(t, int64(20), cfg.Server.ReplayEvents)
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "monitor"

[exchange]
base_url = "http://exchange.local:9000"
team_id = "t-42"
api_key = "k-42"
request_timeout = "3s"

[trading]
symbols = ["taco", "ghost"]
poll_interval = "500ms"
min_spread = 0.25
spread_capture = "0.5"
trade_quantity = 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "http://exchange.local:9000", cfg.Exchange.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Exchange.RequestTimeout.Duration)
	assert.Equal(t, []string{"TACO", "GHOST"}, cfg.Trading.Symbols)
	assert.Equal(t, 500*time.Millisecond, cfg.Trading.PollInterval.Duration)
	assert.True(t, cfg.Trading.MinSpread.Equal(decimal.RequireFromString("0.25")), cfg.Trading.MinSpread.String())
	assert.True(t, cfg.Trading.SpreadCapture.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(3), cfg.Trading.TradeQuantity)
	// untouched fields keep their defaults
	assert.Equal(t, int64(10), cfg.Trading.MinLiquidity)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EMOJIBOT_EXCHANGE_TEAM_ID", "env-team")
	t.Setenv("EMOJIBOT_EXCHANGE_API_KEY", "env-key")
	t.Setenv("EMOJIBOT_TRADING_SYMBOLS", "rocket, fire ,")
	t.Setenv("EMOJIBOT_TRADING_ORDER_BUDGET", "250.50")
	t.Setenv("EMOJIBOT_TRADING_POLL_INTERVAL", "5s")
	t.Setenv("EMOJIBOT_REDIS_ENABLED", "true")
	t.Setenv("EMOJIBOT_TRADING_REPORT_EVERY", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-team", cfg.Exchange.TeamID)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, []string{"ROCKET", "FIRE"}, cfg.Trading.Symbols)
	assert.True(t, cfg.Trading.OrderBudget.Equal(decimal.RequireFromString("250.5")))
	assert.Equal(t, 5*time.Second, cfg.Trading.PollInterval.Duration)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, int64(10), cfg.Trading.ReportEvery, "unparsable override is ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "yolo" }, wantErr: "unknown mode"},
		{name: "trade without credentials", mutate: func(c *Config) { c.Exchange.APIKey = "" }, wantErr: "team_id and api_key"},
		{name: "monitor without credentials", mutate: func(c *Config) { c.Mode = "monitor"; c.Exchange.TeamID = "" }, wantErr: "team_id and api_key"},
		{name: "register needs team name", mutate: func(c *Config) { c.Mode = "register" }, wantErr: "team_name"},
		{name: "register without credentials", mutate: func(c *Config) {
			c.Mode = "register"
			c.Exchange.TeamName = "rockets"
			c.Exchange.TeamID, c.Exchange.APIKey = "", ""
		}},
		{name: "relative base url", mutate: func(c *Config) { c.Exchange.BaseURL = "/api" }, wantErr: "base_url"},
		{name: "no symbols", mutate: func(c *Config) { c.Trading.Symbols = nil }, wantErr: "symbols must not be empty"},
		{name: "duplicate symbol", mutate: func(c *Config) { c.Trading.Symbols = []string{"TACO", "TACO"} }, wantErr: "duplicate symbol"},
		{name: "zero quantity", mutate: func(c *Config) { c.Trading.TradeQuantity = 0 }, wantErr: "trade_quantity"},
		{name: "capture above one", mutate: func(c *Config) { c.Trading.SpreadCapture = decimal.NewFromInt(2) }, wantErr: "spread_capture"},
		{name: "bad time in force", mutate: func(c *Config) { c.Exchange.TimeInForce = "DAY" }, wantErr: "time_in_force"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.S3.Enabled = true }, wantErr: "bucket"},
		{name: "half telegram", mutate: func(c *Config) { c.Notify.TelegramToken = "tok" }, wantErr: "telegram_chat_id"},
		{name: "postgres dsn skips parts", mutate: func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.DSN = "postgres://u:p@db/emojibot"
			c.Postgres.Host = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Trading.TradeQuantity = 0
	cfg.Trading.PollInterval.Duration = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trade_quantity")
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestTradingParams(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.IndustrialOrderCap = 25
	p := cfg.Trading.Params()

	assert.Equal(t, int64(25), p.IndustrialCap)
	assert.True(t, p.MinSpread.Equal(cfg.Trading.MinSpread))
	assert.True(t, p.OrderBudget.Equal(decimal.NewFromInt(100)))
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Password = "redis-pw"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)

	assert.Equal(t, "***", out.Exchange.APIKey)
	assert.Equal(t, "***", out.Redis.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Equal(t, "", out.S3.AccessKey, "empty secrets stay empty")
	assert.Equal(t, "team-1", out.Exchange.TeamID)

	// original untouched
	assert.Equal(t, "key-1", cfg.Exchange.APIKey)
	out.Trading.Symbols[0] = "CHANGED"
	assert.NotEqual(t, "CHANGED", cfg.Trading.Symbols[0])
}
