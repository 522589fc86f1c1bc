package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/config"
	"github.com/kjannette/trahn-post-trader/internal/logging"
)

const banner = `
╔══════════════════════════════════════╗
║      TRAHN Post Trading Bot          ║
║                                      ║
╚══════════════════════════════════════╝
`

type runFlags struct {
	handle       string
	ticker       string
	usdAmount    string
	holdHours    float64
	feedKeys     string
	exchangeKeys string
	recipient    string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Listen to the account's posts and trade the ticker",
		Example: `  trader run -u elonmusk -t DOGEUSD -d 10 -s 1 \
    --feed-keys feed.yaml --exchange-keys binance.yaml -e ops@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := f.apply(cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, banner)
			cfg.Print(out)

			log, logPath, err := logging.New(logging.Options{Dir: cfg.DataDir, Level: cfg.LogLevel})
			if err != nil {
				return err
			}
			defer log.Sync()
			log.Info("audit log opened", zap.String("path", logPath))
			for _, w := range cfg.Warnings() {
				log.Warn(w)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg, log)
			if err != nil {
				log.Error("startup failed", zap.Error(err))
				return err
			}
			defer app.Close()
			return app.Run(ctx)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.handle, "user", "u", "", "tracked account handle")
	fl.StringVarP(&f.ticker, "ticker", "t", "", "ticker symbol, e.g. DOGEUSD")
	fl.StringVarP(&f.usdAmount, "dollars", "d", "", "USD amount per trade")
	fl.Float64VarP(&f.holdHours, "hold", "s", 0, "hold duration in hours")
	fl.StringVar(&f.feedKeys, "feed-keys", "", "path to feed API credentials (YAML)")
	fl.StringVar(&f.exchangeKeys, "exchange-keys", "", "path to exchange API credentials (YAML)")
	fl.StringVarP(&f.recipient, "email", "e", "", "notification recipient")
	for _, name := range []string{"user", "ticker", "dollars", "hold", "feed-keys"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (f runFlags) apply(cfg *config.Config) error {
	amount, err := decimal.NewFromString(f.usdAmount)
	if err != nil {
		return fmt.Errorf("invalid USD amount %q: %w", f.usdAmount, err)
	}
	cfg.Handle = f.handle
	cfg.Ticker = f.ticker
	cfg.USDAmount = amount
	cfg.HoldHours = f.holdHours
	cfg.FeedKeysPath = f.feedKeys
	cfg.ExchangeKeysPath = f.exchangeKeys
	cfg.Recipient = f.recipient
	return nil
}
