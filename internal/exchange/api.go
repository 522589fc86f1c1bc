package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

// ErrInvalidSide is returned for an order side other than BUY or SELL.
// It indicates a programming error and stops the supervisor.
var ErrInvalidSide = errors.New("invalid order side")

// API is what the executor needs from an exchange.
type API interface {
	CheckBalances(ctx context.Context) (models.BalanceSnapshot, error)
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error)
}

// PriceSource returns last prices keyed by exchange symbol (e.g. "DOGEUSD").
type PriceSource interface {
	Prices(ctx context.Context) (map[string]decimal.Decimal, error)
}
