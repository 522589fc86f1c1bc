package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/api"
	"github.com/kjannette/trahn-post-trader/internal/bot"
	"github.com/kjannette/trahn-post-trader/internal/config"
	"github.com/kjannette/trahn-post-trader/internal/db"
	"github.com/kjannette/trahn-post-trader/internal/exchange"
	"github.com/kjannette/trahn-post-trader/internal/feed"
	"github.com/kjannette/trahn-post-trader/internal/ledger"
	"github.com/kjannette/trahn-post-trader/internal/notifications"
	"github.com/kjannette/trahn-post-trader/internal/repository"
	"github.com/kjannette/trahn-post-trader/internal/risk"
	"github.com/kjannette/trahn-post-trader/internal/strategy"
)

// app owns the long-lived pieces of a run: the cycle state, ledger,
// notifier, optional database pool and status API.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	pool       *pgxpool.Pool
	state      *bot.CycleState
	supervisor *bot.Supervisor
	server     *api.Server
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	feedCreds, err := config.LoadFeedCredentials(cfg.FeedKeysPath)
	if err != nil {
		return nil, err
	}
	var exCreds config.ExchangeCredentials
	if cfg.ExchangeKeysPath != "" {
		if exCreds, err = config.LoadExchangeCredentials(cfg.ExchangeKeysPath); err != nil {
			return nil, err
		}
	}

	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName, cfg.Recipient, log)

	// Database mirror (optional)
	var mirror ledger.Mirror
	var trades api.TradeSource
	csvLedger := ledger.NewCSVLedger(cfg.DataDir)
	trades = csvLedger
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		a.pool = pool
		if err := db.TestConnection(ctx, pool, log); err != nil {
			a.Close()
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
		repo := repository.NewTradeRepo(pool)
		mirror = repo
		trades = repo
	}
	led := ledger.New(csvLedger, mirror, nil, log)

	quote := strategy.QuoteAsset(cfg.Ticker)
	guard := risk.NewGuardian(risk.Limits{QuoteAsset: quote, FeeAsset: cfg.FeeAsset})
	newExchange := a.exchangeFactory(exCreds, quote)

	a.state = bot.NewCycleState(cfg.Hold())
	factory := bot.NewSessionFactory(bot.SessionDeps{
		Trader: bot.TraderConfig{
			Ticker:              strings.ToUpper(cfg.Ticker),
			USDAmount:           cfg.USDAmount,
			Hold:                cfg.Hold(),
			SellRecheckInterval: cfg.SellRecheckInterval,
		},
		Handle:      cfg.Handle,
		Guard:       guard,
		NewExchange: newExchange,
		NewFeed: func() (bot.PostStream, error) {
			return feed.NewClient(feed.Config{
				BearerToken: feedCreds.BearerToken,
				APIURL:      feedCreds.APIURL,
				StreamURL:   feedCreds.StreamURL,
			}, log), nil
		},
		Ledger: led,
		Notify: notify,
		Log:    log,
	})
	a.supervisor = bot.NewSupervisor(bot.SupervisorConfig{
		RestartDelay: cfg.RestartDelay,
		MaxRestarts:  cfg.MaxRestarts,
	}, factory, a.state, notify, log)

	if cfg.APIPort > 0 {
		var pinger api.Pinger
		if a.pool != nil {
			pinger = a.pool
		}
		a.server = api.NewServer(api.Config{
			Port:       cfg.APIPort,
			APIKey:     cfg.APIKey,
			CORSOrigin: cfg.CORSAllowOrigin,
		}, trades, a.state, pinger, log)
	}
	return a, nil
}

// exchangeFactory returns a fresh live client per session. The paper
// exchange is built once so simulated balances survive restarts.
func (a *app) exchangeFactory(creds config.ExchangeCredentials, quote string) func() (exchange.API, error) {
	clientCfg := exchange.Config{
		APIKey:     creds.APIKey,
		APISecret:  creds.APISecret,
		BaseURL:    creds.BaseURL,
		QuoteAsset: quote,
	}
	if !a.cfg.PaperTradingEnabled {
		return func() (exchange.API, error) {
			return exchange.NewClient(clientCfg, a.log), nil
		}
	}

	initial := map[string]decimal.Decimal{quote: a.cfg.PaperInitialUSD}
	if a.cfg.FeeAsset != "" && a.cfg.PaperInitialFeeAsset.IsPositive() {
		initial[a.cfg.FeeAsset] = a.cfg.PaperInitialFeeAsset
	}
	paper := exchange.NewPaperExchange(exchange.NewClient(clientCfg, a.log), quote, a.cfg.FeeAsset, initial, a.log)
	return func() (exchange.API, error) {
		return paper, nil
	}
}

// Run blocks until ctx is cancelled, the supervisor gives up or the
// status API fails to serve.
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() { serverErr <- a.server.Start() }()
	}

	supErr := make(chan error, 1)
	go func() { supErr <- a.supervisor.Run(ctx) }()

	var err error
	select {
	case err = <-supErr:
	case err = <-serverErr:
		err = fmt.Errorf("api server: %w", err)
		a.log.Error("status API stopped", zap.Error(err))
		cancel()
		<-supErr
	}

	a.log.Info("shutting down gracefully")
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := a.server.Shutdown(shutdownCtx); serr != nil {
			a.log.Error("api shutdown", zap.Error(serr))
		}
	}
	snap := a.state.Snapshot()
	a.log.Info("shutdown complete", zap.String("side", string(snap.Side)))
	return err
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.log.Info("database pool closed")
	}
}
