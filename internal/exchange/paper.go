package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

// PaperExchange simulates a spot account against live prices. Orders fill
// in full at the last price. Commission is paid in the fee asset when its
// balance covers it, otherwise in the quote asset.
type PaperExchange struct {
	mu       sync.Mutex
	prices   PriceSource
	quote    string
	feeAsset string
	feeRate  decimal.Decimal
	balances map[string]decimal.Decimal
	orders   []models.OrderResult
	nextID   int64
	now      func() time.Time
	log      *zap.Logger
}

func NewPaperExchange(prices PriceSource, quote, feeAsset string, initial map[string]decimal.Decimal, log *zap.Logger) *PaperExchange {
	if quote == "" {
		quote = "USD"
	}
	if log == nil {
		log = zap.NewNop()
	}
	balances := make(map[string]decimal.Decimal, len(initial))
	for asset, amt := range initial {
		balances[strings.ToUpper(asset)] = amt
	}
	pe := &PaperExchange{
		prices:   prices,
		quote:    quote,
		feeAsset: strings.ToUpper(feeAsset),
		feeRate:  decimal.RequireFromString("0.001"),
		balances: balances,
		nextID:   1,
		now:      time.Now,
		log:      log.Named("paper"),
	}
	pe.log.Info("starting paper account", zap.Any("balances", pe.balanceStrings()))
	return pe
}

func (pe *PaperExchange) CheckBalances(ctx context.Context) (models.BalanceSnapshot, error) {
	prices, err := pe.prices.Prices(ctx)
	if err != nil {
		return nil, fmt.Errorf("paper prices: %w", err)
	}

	pe.mu.Lock()
	defer pe.mu.Unlock()

	snap := models.BalanceSnapshot{}
	for asset, amt := range pe.balances {
		price := decimal.NewFromInt(1)
		if asset != pe.quote {
			price = prices[asset+pe.quote]
		}
		snap[asset] = models.AssetBalance{Amount: amt, PriceUSD: price, ValueUSD: amt.Mul(price)}
	}
	return snap, nil
}

func (pe *PaperExchange) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	prices, err := pe.prices.Prices(ctx)
	if err != nil {
		return nil, fmt.Errorf("paper prices: %w", err)
	}
	price, ok := prices[req.Symbol]
	if !ok || !price.IsPositive() {
		return nil, fmt.Errorf("paper: no price for %s", req.Symbol)
	}
	base := strings.TrimSuffix(req.Symbol, pe.quote)

	pe.mu.Lock()
	defer pe.mu.Unlock()

	var qty, notional decimal.Decimal
	switch req.Side {
	case models.SideBuy:
		notional = req.QuoteQty
		qty = notional.Div(price).Truncate(8)
	case models.SideSell:
		qty = req.Qty
		notional = qty.Mul(price).Truncate(8)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, req.Side)
	}
	fee := notional.Mul(pe.feeRate)

	// Fee asset commission is converted at its own last price.
	feeCharged, feeCurrency := fee, pe.quote
	if pe.feeAsset != "" && pe.feeAsset != pe.quote {
		if fp := prices[pe.feeAsset+pe.quote]; fp.IsPositive() {
			inFeeAsset := fee.Div(fp).Truncate(8)
			if pe.balances[pe.feeAsset].GreaterThanOrEqual(inFeeAsset) {
				feeCharged, feeCurrency = inFeeAsset, pe.feeAsset
			}
		}
	}
	quoteFee := decimal.Zero
	if feeCurrency == pe.quote {
		quoteFee = fee
	}

	quoteBal := pe.balances[pe.quote]
	baseBal := pe.balances[base]
	if req.Side == models.SideBuy {
		if quoteBal.LessThan(notional.Add(quoteFee)) {
			return nil, fmt.Errorf("paper: insufficient %s: have %s, need %s", pe.quote, quoteBal, notional.Add(quoteFee))
		}
		pe.balances[pe.quote] = quoteBal.Sub(notional).Sub(quoteFee)
		pe.balances[base] = baseBal.Add(qty)
	} else {
		if baseBal.LessThan(qty) {
			return nil, fmt.Errorf("paper: insufficient %s: have %s, need %s", base, baseBal, qty)
		}
		pe.balances[base] = baseBal.Sub(qty)
		pe.balances[pe.quote] = quoteBal.Add(notional).Sub(quoteFee)
	}
	if feeCurrency != pe.quote {
		pe.balances[feeCurrency] = pe.balances[feeCurrency].Sub(feeCharged)
	}

	result := models.OrderResult{
		Symbol:             req.Symbol,
		OrderID:            pe.nextID,
		ClientOrderID:      req.ClientID,
		TransactTime:       pe.now().UnixMilli(),
		ExecutedQty:        qty,
		CumulativeQuoteQty: notional,
		Status:             "FILLED",
		Type:               models.OrderTypeMarket,
		Side:               req.Side,
		Fills: []models.Fill{{
			Price:           price,
			Qty:             qty,
			Commission:      feeCharged,
			CommissionAsset: feeCurrency,
		}},
	}
	pe.nextID++
	pe.orders = append(pe.orders, result)

	pe.log.Info("paper order filled",
		zap.String("side", string(req.Side)),
		zap.String("symbol", req.Symbol),
		zap.String("qty", qty.String()),
		zap.String("price", price.String()),
		zap.Any("balances", pe.balanceStrings()))
	return &result, nil
}

// Orders returns a copy of every simulated fill.
func (pe *PaperExchange) Orders() []models.OrderResult {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	out := make([]models.OrderResult, len(pe.orders))
	copy(out, pe.orders)
	return out
}

func (pe *PaperExchange) balanceStrings() map[string]string {
	out := make(map[string]string, len(pe.balances))
	for k, v := range pe.balances {
		out[k] = v.String()
	}
	return out
}
