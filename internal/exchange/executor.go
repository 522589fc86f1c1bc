package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/ids"
	"github.com/kjannette/trahn-post-trader/internal/models"
	"github.com/kjannette/trahn-post-trader/internal/risk"
	"github.com/kjannette/trahn-post-trader/internal/strategy"
)

// Executor validates balances and places market orders for one ticker.
type Executor struct {
	api       API
	guard     *risk.Guardian
	ticker    string
	base      string
	usdAmount decimal.Decimal
	log       *zap.Logger

	mu           sync.Mutex
	insufficient bool
}

func NewExecutor(api API, guard *risk.Guardian, ticker string, usdAmount decimal.Decimal, log *zap.Logger) (*Executor, error) {
	base, err := strategy.BaseAsset(ticker)
	if err != nil {
		return nil, err
	}
	if !usdAmount.IsPositive() {
		return nil, fmt.Errorf("trade amount must be positive, got %s", usdAmount)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		api:       api,
		guard:     guard,
		ticker:    strings.ToUpper(ticker),
		base:      base,
		usdAmount: usdAmount,
		log:       log.Named("executor"),
	}, nil
}

// CheckBalances always queries the exchange; snapshots are never cached.
func (e *Executor) CheckBalances(ctx context.Context) (models.BalanceSnapshot, error) {
	snap, err := e.api.CheckBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("check balances: %w", err)
	}
	return snap, nil
}

// Buy places a market buy of usdAmount notional.
func (e *Executor) Buy(ctx context.Context, usdAmount decimal.Decimal) (*models.OrderResult, error) {
	snap, err := e.CheckBalances(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.guard.CheckBuy(snap, usdAmount); err != nil {
		return nil, e.skip(err)
	}
	return e.submit(ctx, models.OrderRequest{
		Symbol:   e.ticker,
		Side:     models.SideBuy,
		Type:     models.OrderTypeMarket,
		QuoteQty: usdAmount,
	})
}

// Sell places a market sell of qty base units. The fee check uses the
// configured buy notional.
func (e *Executor) Sell(ctx context.Context, qty decimal.Decimal) (*models.OrderResult, error) {
	snap, err := e.CheckBalances(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.guard.CheckSell(snap, e.base, qty, e.usdAmount); err != nil {
		return nil, e.skip(err)
	}
	return e.submit(ctx, models.OrderRequest{
		Symbol: e.ticker,
		Side:   models.SideSell,
		Type:   models.OrderTypeMarket,
		Qty:    qty,
	})
}

// Place dispatches on side. qty is ignored for buys.
func (e *Executor) Place(ctx context.Context, side models.Side, qty decimal.Decimal) (*models.OrderResult, error) {
	switch side {
	case models.SideBuy:
		return e.Buy(ctx, e.usdAmount)
	case models.SideSell:
		return e.Sell(ctx, qty)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
}

// InsufficientFunds reports whether the last decision was skipped for lack of funds.
func (e *Executor) InsufficientFunds() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insufficient
}

func (e *Executor) Ticker() string { return e.ticker }

func (e *Executor) BaseAsset() string { return e.base }

func (e *Executor) USDAmount() decimal.Decimal { return e.usdAmount }

func (e *Executor) submit(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	req.ClientID = ids.ClientOrderID()
	order, err := e.api.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create %s order: %w", strings.ToLower(string(req.Side)), err)
	}
	e.setInsufficient(false)
	return order, nil
}

func (e *Executor) skip(err error) error {
	e.setInsufficient(true)
	var ie *risk.InsufficientError
	if errors.As(err, &ie) {
		e.log.Info("order skipped",
			zap.String("side", string(ie.Side)),
			zap.String("ticker", e.ticker),
			zap.String("reason", ie.Reason))
	}
	return err
}

func (e *Executor) setInsufficient(v bool) {
	e.mu.Lock()
	e.insufficient = v
	e.mu.Unlock()
}
