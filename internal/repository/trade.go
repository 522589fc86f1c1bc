package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

// TradeRepo mirrors ledger rows into Postgres. The CSV file stays the
// record of truth; this table backs the status API.
type TradeRepo struct {
	pool *pgxpool.Pool
}

func NewTradeRepo(pool *pgxpool.Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

const tradeColumns = `id, ticker, account, text, post_id, post_time,
	price::text, commission::text, commission_asset, quantity::text, usd_value::text,
	order_type, side, filled_at, trading_day`

func (r *TradeRepo) Insert(ctx context.Context, rec models.LedgerRecord) error {
	ts := rec.FilledAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO trade_history
		 (id, ticker, account, text, post_id, post_time, price, commission,
		  commission_asset, quantity, usd_value, order_type, side, filled_at, trading_day)
		 VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9,$10::numeric,$11::numeric,$12,$13,$14,$15)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Ticker, rec.Account, rec.Text, rec.PostID, nullTime(rec.PostTime),
		rec.Price.String(), rec.Commission.String(), rec.CommissionAsset,
		rec.Quantity.String(), rec.USDValue.String(),
		string(rec.OrderType), string(rec.Side), ts, TradingDay(ts),
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", rec.ID, err)
	}
	return nil
}

// GetByDay returns trades for a given trading day, oldest first.
func (r *TradeRepo) GetByDay(ctx context.Context, tradingDay string) ([]models.LedgerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trade_history
		 WHERE trading_day = $1 ORDER BY filled_at ASC`,
		tradingDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetAll returns the most recent trades.
func (r *TradeRepo) GetAll(ctx context.Context, limit int) ([]models.LedgerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trade_history
		 ORDER BY filled_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (r *TradeRepo) GetStats(ctx context.Context) (*models.TradeStats, error) {
	var s models.TradeStats
	var volume string
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(CASE WHEN side = 'BUY' THEN 1 END),
			COUNT(CASE WHEN side = 'SELL' THEN 1 END),
			COALESCE(SUM(usd_value), 0)::text,
			MIN(filled_at),
			MAX(filled_at)
		 FROM trade_history`,
	).Scan(&s.TotalTrades, &s.BuyCount, &s.SellCount, &volume, &s.FirstTrade, &s.LastTrade)
	if err != nil {
		return nil, err
	}
	if s.TotalVolume, err = decimal.NewFromString(volume); err != nil {
		return nil, fmt.Errorf("parse volume %q: %w", volume, err)
	}
	return &s, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTrade(row scannable) (models.LedgerRecord, error) {
	var rec models.LedgerRecord
	var postTime *time.Time
	var price, commission, qty, usd, orderType, side string
	var td time.Time
	err := row.Scan(
		&rec.ID, &rec.Ticker, &rec.Account, &rec.Text, &rec.PostID, &postTime,
		&price, &commission, &rec.CommissionAsset, &qty, &usd,
		&orderType, &side, &rec.FilledAt, &td,
	)
	if err != nil {
		return rec, err
	}
	if postTime != nil {
		rec.PostTime = postTime.UTC()
	}
	rec.FilledAt = rec.FilledAt.UTC()
	rec.OrderType = models.OrderType(orderType)
	rec.Side = models.Side(side)

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&rec.Price, price}, {&rec.Commission, commission}, {&rec.Quantity, qty}, {&rec.USDValue, usd}} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return rec, fmt.Errorf("trade %s: parse %q: %w", rec.ID, f.src, err)
		}
		*f.dst = d
	}
	return rec, nil
}

func collectTrades(rows rowsIter) ([]models.LedgerRecord, error) {
	var out []models.LedgerRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
