package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Handle:           "@elonmusk",
		Ticker:           "DOGEUSD",
		USDAmount:        decimal.NewFromInt(10),
		HoldHours:        1.5,
		FeedKeysPath:     "feed.yaml",
		ExchangeKeysPath: "exchange.yaml",
		RestartDelay:     5 * time.Second,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, "TrahnPostTrader", cfg.BotName)
	assert.Equal(t, 5*time.Second, cfg.RestartDelay)
	assert.Equal(t, "BNB", cfg.FeeAsset)
	assert.Equal(t, 0, cfg.APIPort)
	assert.False(t, cfg.PaperTradingEnabled)
	assert.True(t, cfg.PaperInitialUSD.Equal(decimal.NewFromInt(1000)))
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RESTART_DELAY", "250ms")
	t.Setenv("MAX_RESTARTS", "3")
	t.Setenv("SELL_RECHECK_INTERVAL", "1m")
	t.Setenv("PAPER_TRADING_ENABLED", "true")
	t.Setenv("PAPER_INITIAL_USD", "42.5")
	t.Setenv("API_PORT", "3001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.RestartDelay)
	assert.Equal(t, 3, cfg.MaxRestarts)
	assert.Equal(t, time.Minute, cfg.SellRecheckInterval)
	assert.True(t, cfg.PaperTradingEnabled)
	assert.True(t, cfg.PaperInitialUSD.Equal(decimal.RequireFromString("42.5")))
	assert.Equal(t, 3001, cfg.APIPort)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RESTART_DELAY", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(c *Config){
		"handle":    func(c *Config) { c.Handle = "@" },
		"ticker":    func(c *Config) { c.Ticker = "USD" },
		"amount":    func(c *Config) { c.USDAmount = decimal.Zero },
		"hold":      func(c *Config) { c.HoldHours = 0 },
		"feed keys": func(c *Config) { c.FeedKeysPath = "" },
		"exchange":  func(c *Config) { c.ExchangeKeysPath = "" },
		"restarts":  func(c *Config) { c.MaxRestarts = -1 },
		"port":      func(c *Config) { c.APIPort = 70000 },
	}
	for name, mutate := range cases {
		c := validConfig()
		mutate(c)
		assert.Error(t, c.Validate(), name)
	}

	paper := validConfig()
	paper.ExchangeKeysPath = ""
	paper.PaperTradingEnabled = true
	assert.NoError(t, paper.Validate(), "paper mode needs no exchange keys")
}

func TestHold(t *testing.T) {
	assert.Equal(t, 90*time.Minute, validConfig().Hold())
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	validConfig().Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "LIVE TRADING MODE")
	assert.Contains(t, out, "Account: @elonmusk")
	assert.Contains(t, out, "Amount/Trade: $10.00")
	assert.Contains(t, out, "Hold: 1h30m0s")
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	feed := filepath.Join(dir, "feed.yaml")
	require.NoError(t, os.WriteFile(feed, []byte("bearer_token: abc\nstream_url: wss://example.test/stream\n"), 0o600))
	_, err := LoadFeedCredentials(feed)
	assert.Error(t, err, "api_url missing")

	require.NoError(t, os.WriteFile(feed, []byte("bearer_token: abc\napi_url: https://example.test/2\nstream_url: wss://example.test/stream\n"), 0o600))
	fc, err := LoadFeedCredentials(feed)
	require.NoError(t, err)
	assert.Equal(t, "abc", fc.BearerToken)
	assert.Equal(t, "wss://example.test/stream", fc.StreamURL)

	ex := filepath.Join(dir, "exchange.yaml")
	require.NoError(t, os.WriteFile(ex, []byte("api_key: k\n"), 0o600))
	_, err = LoadExchangeCredentials(ex)
	assert.Error(t, err, "secret missing")

	require.NoError(t, os.WriteFile(ex, []byte("api_key: k\napi_secret: s\n"), 0o600))
	ec, err := LoadExchangeCredentials(ex)
	require.NoError(t, err)
	assert.Equal(t, "s", ec.APISecret)

	_, err = LoadFeedCredentials(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
