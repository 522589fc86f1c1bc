package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-post-trader/internal/ledger"
	"github.com/kjannette/trahn-post-trader/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "trader dev\n", out)
}

func TestLedgerCommand(t *testing.T) {
	dir := t.TempDir()
	l := ledger.NewCSVLedger(dir)
	filled := time.Date(2021, 5, 8, 18, 0, 0, 0, time.UTC)
	for i, side := range []models.Side{models.SideBuy, models.SideSell} {
		require.NoError(t, l.Record(models.LedgerRecord{
			Ticker:          "DOGEUSD",
			Account:         "elonmusk",
			Text:            "doge",
			PostID:          "42",
			PostTime:        filled,
			Price:           decimal.RequireFromString("0.5"),
			Commission:      decimal.RequireFromString("0.00003"),
			CommissionAsset: "BNB",
			Quantity:        decimal.NewFromInt(20),
			USDValue:        decimal.NewFromInt(10),
			OrderType:       models.OrderTypeMarket,
			Side:            side,
			FilledAt:        filled.Add(time.Duration(i) * time.Hour),
		}))
	}

	out, err := execute(t, "ledger", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, ledger.FileName))
	assert.Contains(t, out, "Trades: 2 (buys 1, sells 1)")
	assert.Contains(t, out, "Volume: $20.00")
	assert.Contains(t, out, "05/08/2021: 19:00:00")

	out, err = execute(t, "ledger", "--data-dir", dir, "--day", "2021-05-09")
	require.NoError(t, err)
	assert.Contains(t, out, "no trades recorded")
}

func TestRun_MissingFlags(t *testing.T) {
	_, err := execute(t, "run", "-u", "elonmusk")
	assert.Error(t, err)
}

func TestRun_BadAmount(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "run", "-u", "elonmusk", "-t", "DOGEUSD", "-d", "ten", "-s", "1", "--feed-keys", "f.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid USD amount")
}

func TestRun_MissingCredentialsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DATA_DIR", dir)
	t.Setenv("PAPER_TRADING_ENABLED", "true")

	out, err := execute(t, "run", "-u", "elonmusk", "-t", "DOGEUSD", "-d", "10", "-s", "1",
		"--feed-keys", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read credentials")
	assert.Contains(t, out, "PAPER TRADING MODE ENABLED")
	assert.FileExists(t, filepath.Join(dir, "logger_0.txt"))
}
