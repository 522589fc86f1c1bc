package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-post-trader/internal/strategy"
)

type Config struct {
	// Trading (command-line flags)
	Handle           string
	Ticker           string
	USDAmount        decimal.Decimal
	HoldHours        float64
	FeedKeysPath     string
	ExchangeKeysPath string
	Recipient        string

	// Runtime (environment / .env)
	DataDir             string        `env:"DATA_DIR" envDefault:"."`
	WebhookURL          string        `env:"WEBHOOK_URL"`
	BotName             string        `env:"BOT_NAME" envDefault:"TrahnPostTrader"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	RestartDelay        time.Duration `env:"RESTART_DELAY" envDefault:"5s"`
	MaxRestarts         int           `env:"MAX_RESTARTS" envDefault:"0"`
	SellRecheckInterval time.Duration `env:"SELL_RECHECK_INTERVAL" envDefault:"0s"`
	FeeAsset            string        `env:"FEE_ASSET" envDefault:"BNB"`

	// Ledger mirror + status API
	DatabaseURL     string `env:"DATABASE_URL"`
	APIPort         int    `env:"API_PORT" envDefault:"0"`
	APIKey          string `env:"API_KEY"`
	CORSAllowOrigin string `env:"CORS_ALLOW_ORIGIN" envDefault:"*"`

	// Paper Trading
	PaperTradingEnabled  bool            `env:"PAPER_TRADING_ENABLED" envDefault:"false"`
	PaperInitialUSD      decimal.Decimal `env:"PAPER_INITIAL_USD" envDefault:"1000"`
	PaperInitialFeeAsset decimal.Decimal `env:"PAPER_INITIAL_FEE_ASSET" envDefault:"0"`
}

// Load reads .env if present, then the process environment. Flag-backed
// fields are left for the caller to fill before Validate.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Hold is the configured holding period.
func (c *Config) Hold() time.Duration {
	return time.Duration(c.HoldHours * float64(time.Hour))
}

// Warnings lists settings that are legal but probably unintended.
func (c *Config) Warnings() []string {
	var warns []string
	if c.WebhookURL == "" {
		warns = append(warns, "WEBHOOK_URL not set, notifications are log-only")
	}
	if c.APIPort > 0 && c.APIKey == "" {
		warns = append(warns, "API_KEY not set, REST API has no authentication")
	}
	if c.SellRecheckInterval == 0 {
		warns = append(warns, "SELL_RECHECK_INTERVAL is 0, a skipped sell waits for the next session")
	}
	return warns
}

func (c *Config) Validate() error {
	var errs []string

	if strings.TrimPrefix(c.Handle, "@") == "" {
		errs = append(errs, "account handle is required (-u)")
	}
	if _, err := strategy.BaseAsset(c.Ticker); err != nil {
		errs = append(errs, err.Error())
	}
	if !c.USDAmount.IsPositive() {
		errs = append(errs, "USD amount must be positive (-d)")
	}
	if c.HoldHours <= 0 {
		errs = append(errs, "hold hours must be positive (-s)")
	}
	if c.FeedKeysPath == "" {
		errs = append(errs, "feed credentials file is required (--feed-keys)")
	}
	if !c.PaperTradingEnabled && c.ExchangeKeysPath == "" {
		errs = append(errs, "exchange credentials file is required for live trading (--exchange-keys)")
	}
	if c.RestartDelay <= 0 {
		errs = append(errs, "RESTART_DELAY must be positive")
	}
	if c.MaxRestarts < 0 {
		errs = append(errs, "MAX_RESTARTS must be >= 0")
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		errs = append(errs, "API_PORT out of range")
	}
	if c.PaperTradingEnabled && c.PaperInitialUSD.IsNegative() {
		errs = append(errs, "PAPER_INITIAL_USD must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Post Trader Configuration ===")

	if c.PaperTradingEnabled {
		fmt.Fprintln(w, "════════════════════════════════════════")
		fmt.Fprintln(w, "  PAPER TRADING MODE ENABLED")
		fmt.Fprintln(w, "  No real orders will be placed")
		fmt.Fprintln(w, "════════════════════════════════════════")
		fmt.Fprintf(w, "Paper Initial USD: %s\n", c.PaperInitialUSD)
		fmt.Fprintf(w, "Paper Initial %s: %s\n", c.FeeAsset, c.PaperInitialFeeAsset)
	} else {
		fmt.Fprintln(w, "  LIVE TRADING MODE")
	}

	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "Account: @%s\n", strings.TrimPrefix(c.Handle, "@"))
	fmt.Fprintf(w, "Ticker: %s\n", strings.ToUpper(c.Ticker))
	fmt.Fprintf(w, "Amount/Trade: $%s\n", c.USDAmount.StringFixed(2))
	fmt.Fprintf(w, "Hold: %s\n", c.Hold())
	fmt.Fprintf(w, "Fee Asset: %s\n", c.FeeAsset)
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "Data Dir: %s\n", c.DataDir)
	fmt.Fprintf(w, "Restart Delay: %s\n", c.RestartDelay)
	fmt.Fprintf(w, "Notifications: %s\n", boolLabel(c.WebhookURL != "", "webhook", "log only"))
	fmt.Fprintf(w, "Ledger Mirror: %s\n", boolLabel(c.DatabaseURL != "", "postgres", "disabled"))
	if c.APIPort > 0 {
		fmt.Fprintf(w, "REST API: :%d\n", c.APIPort)
	} else {
		fmt.Fprintln(w, "REST API: disabled")
	}
	fmt.Fprintln(w, "======================================")
}

// --- helpers ---

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
