package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

// ErrInsufficientFunds marks a skipped order decision. It is an outcome, not a fault.
var ErrInsufficientFunds = errors.New("insufficient funds")

// InsufficientError carries the reason an order was not placed.
type InsufficientError struct {
	Side   models.Side
	Reason string
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%s skipped: %s", e.Side, e.Reason)
}

func (e *InsufficientError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Limits holds the exchange constraints the guardian enforces.
// Zero values are replaced with the Binance.us defaults.
type Limits struct {
	FeeRate     decimal.Decimal // 0.001 = 0.1%
	MinOrderUSD decimal.Decimal // exchange minimum notional for sells
	QuoteAsset  string
	FeeAsset    string
}

func DefaultLimits() Limits {
	return Limits{
		FeeRate:     decimal.RequireFromString("0.001"),
		MinOrderUSD: decimal.NewFromInt(10),
		QuoteAsset:  "USD",
		FeeAsset:    "BNB",
	}
}

type Guardian struct {
	limits Limits
}

func NewGuardian(limits Limits) *Guardian {
	def := DefaultLimits()
	if limits.FeeRate.IsZero() {
		limits.FeeRate = def.FeeRate
	}
	if limits.MinOrderUSD.IsZero() {
		limits.MinOrderUSD = def.MinOrderUSD
	}
	if limits.QuoteAsset == "" {
		limits.QuoteAsset = def.QuoteAsset
	}
	if limits.FeeAsset == "" {
		limits.FeeAsset = def.FeeAsset
	}
	return &Guardian{limits: limits}
}

func (g *Guardian) Limits() Limits {
	return g.limits
}

// Fee is the transaction fee charged on a notional amount.
func (g *Guardian) Fee(usdAmount decimal.Decimal) decimal.Decimal {
	return usdAmount.Mul(g.limits.FeeRate)
}

// CheckBuy validates a market buy of usdAmount notional.
// Returns nil if the buy is allowed, an *InsufficientError if not.
func (g *Guardian) CheckBuy(snap models.BalanceSnapshot, usdAmount decimal.Decimal) error {
	usd := snap.Amount(g.limits.QuoteAsset)
	feeAssetUSD := snap.ValueUSD(g.limits.FeeAsset)
	fee := g.Fee(usdAmount)

	if usd.LessThan(usdAmount) ||
		(usd.Sub(usdAmount).LessThan(fee) && feeAssetUSD.LessThan(fee)) {
		return &InsufficientError{
			Side: models.SideBuy,
			Reason: fmt.Sprintf("not enough %s or %s to buy: balance %s %s, %s worth %s USD, buy request %s USD, fee %s USD",
				g.limits.QuoteAsset, g.limits.FeeAsset, usd, g.limits.QuoteAsset,
				g.limits.FeeAsset, feeAssetUSD, usdAmount, fee),
		}
	}
	return nil
}

// CheckSell validates a market sell of qty units of base. The fee is charged on
// the originally configured buy notional. Checks run in order; first failure wins.
func (g *Guardian) CheckSell(snap models.BalanceSnapshot, base string, qty, usdAmount decimal.Decimal) error {
	held := snap.Amount(base)
	sellValue := snap.PriceUSD(base).Mul(qty)
	usd := snap.Amount(g.limits.QuoteAsset)
	feeAssetUSD := snap.ValueUSD(g.limits.FeeAsset)
	fee := g.Fee(usdAmount)

	if held.LessThan(qty) {
		return &InsufficientError{
			Side:   models.SideSell,
			Reason: fmt.Sprintf("not enough %s to sell: balance %s, sell request %s", base, held, qty),
		}
	}
	if sellValue.LessThan(g.limits.MinOrderUSD) {
		return &InsufficientError{
			Side: models.SideSell,
			Reason: fmt.Sprintf("sell size %s USD below exchange minimum %s USD",
				sellValue.StringFixed(2), g.limits.MinOrderUSD),
		}
	}
	if usd.LessThan(fee) && feeAssetUSD.LessThan(fee) {
		return &InsufficientError{
			Side: models.SideSell,
			Reason: fmt.Sprintf("not enough %s or %s to cover sell fee: %s %s, %s worth %s USD, fee %s USD",
				g.limits.QuoteAsset, g.limits.FeeAsset, usd, g.limits.QuoteAsset,
				g.limits.FeeAsset, feeAssetUSD, fee),
		}
	}
	return nil
}
