package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_history (
	id               TEXT PRIMARY KEY,
	ticker           TEXT NOT NULL,
	account          TEXT NOT NULL,
	text             TEXT NOT NULL,
	post_id          TEXT NOT NULL,
	post_time        TIMESTAMPTZ,
	price            NUMERIC NOT NULL,
	commission       NUMERIC NOT NULL,
	commission_asset TEXT NOT NULL,
	quantity         NUMERIC NOT NULL,
	usd_value        NUMERIC NOT NULL,
	order_type       TEXT NOT NULL,
	side             TEXT NOT NULL,
	filled_at        TIMESTAMPTZ NOT NULL,
	trading_day      DATE NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS trade_history_trading_day_idx ON trade_history (trading_day);
CREATE INDEX IF NOT EXISTS trade_history_filled_at_idx ON trade_history (filled_at DESC);
`

// EnsureSchema creates the ledger mirror table when it does not exist.
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
