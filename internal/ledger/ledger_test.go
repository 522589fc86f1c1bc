package ledger

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

var postTime = time.Date(2021, 5, 8, 12, 30, 0, 0, time.UTC)

func testPost() models.Post {
	return models.Post{
		ID:           "1391000000000000000",
		AuthorHandle: "elonmusk",
		Text:         "Doge, to the\nmoon",
		CreatedAt:    postTime,
	}
}

func testOrder(side models.Side, ms int64) *models.OrderResult {
	return &models.OrderResult{
		Symbol:             "DOGEUSD",
		OrderID:            1,
		TransactTime:       ms,
		ExecutedQty:        decimal.RequireFromString("20"),
		CumulativeQuoteQty: decimal.RequireFromString("10.00"),
		Status:             "FILLED",
		Type:               models.OrderTypeMarket,
		Side:               side,
		Fills: []models.Fill{{
			Price:           decimal.RequireFromString("0.5"),
			Qty:             decimal.RequireFromString("20"),
			Commission:      decimal.RequireFromString("0.00003"),
			CommissionAsset: "BNB",
		}},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

type fakeMirror struct {
	err  error
	recs []models.LedgerRecord
}

func (m *fakeMirror) Insert(ctx context.Context, rec models.LedgerRecord) error {
	m.recs = append(m.recs, rec)
	return m.err
}

func TestCSVLedger_HeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	post := testPost()

	first := NewCSVLedger(dir)
	require.NoError(t, first.Record(models.NewLedgerRecord("DOGEUSD", post, post.Text, testOrder(models.SideBuy, 1620477000000))))

	// A fresh instance over the same file, as after a restart.
	second := NewCSVLedger(dir)
	require.NoError(t, second.Record(models.NewLedgerRecord("DOGEUSD", post, post.Text, testOrder(models.SideSell, 1620480600000))))

	lines := readLines(t, filepath.Join(dir, FileName))
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
	for _, l := range lines[1:] {
		assert.NotEqual(t, lines[0], l)
	}
}

func TestCSVLedger_ExistingFileGetsNoHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	l := NewCSVLedger(dir)
	post := testPost()
	require.NoError(t, l.Record(models.NewLedgerRecord("DOGEUSD", post, post.Text, testOrder(models.SideBuy, 1620477000000))))

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "DOGEUSD,elonmusk,"))
}

// shortFile creates the ledger on disk but fails every write.
type shortFile struct{ f *os.File }

func (s shortFile) Write(p []byte) (int, error) { return 0, errors.New("no space left on device") }
func (s shortFile) Close() error { return s.f.Close() }

func TestCSVLedger_FailedHeaderLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	l := NewCSVLedger(dir)
	l.create = func(path string) (io.WriteCloser, error) {
		f, err := createExclusive(path)
		if err != nil {
			return nil, err
		}
		return shortFile{f: f.(*os.File)}, nil
	}
	post := testPost()
	rec := models.NewLedgerRecord("DOGEUSD", post, post.Text, testOrder(models.SideBuy, 1620477000000))

	err := l.Record(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write ledger header")
	assert.NoFileExists(t, l.Path())

	l.create = createExclusive
	require.NoError(t, l.Record(rec))
	lines := readLines(t, l.Path())
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
}

func TestCSVLedger_RowFormat(t *testing.T) {
	dir := t.TempDir()
	l := NewCSVLedger(dir)
	post := testPost()
	require.NoError(t, l.Record(models.NewLedgerRecord("DOGEUSD", post, post.Text, testOrder(models.SideBuy, 1620477000000))))

	lines := readLines(t, l.Path())
	require.Len(t, lines, 2)
	assert.Equal(t,
		"DOGEUSD,elonmusk,Doge  to the moon,1391000000000000000,05/08/2021: 12:30:00,0.5,0.00003,BNB,20,10,MARKET,BUY,05/08/2021: 12:30:00",
		lines[1])
}

func TestCSVLedger_RecordsRoundTrip(t *testing.T) {
	l := NewCSVLedger(t.TempDir())
	post := testPost()
	require.NoError(t, l.Record(models.NewLedgerRecord("DOGEUSD", post, post.Text, testOrder(models.SideBuy, 1620477000000))))
	require.NoError(t, l.Record(models.NewLedgerRecord("DOGEUSD", post, post.Text, testOrder(models.SideSell, 1620480600000))))

	recs, err := l.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.SideBuy, recs[0].Side)
	assert.Equal(t, models.SideSell, recs[1].Side)
	assert.Equal(t, "Doge  to the moon", recs[0].Text)
	assert.True(t, recs[0].PostTime.Equal(postTime))
	assert.True(t, recs[1].Price.Equal(decimal.RequireFromString("0.5")))

	latest, err := l.GetAll(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, models.SideSell, latest[0].Side)

	stats, err := l.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalTrades)
	assert.Equal(t, int64(1), stats.BuyCount)
	assert.True(t, stats.TotalVolume.Equal(decimal.NewFromInt(20)))

	// Both fills precede the 17:00 UTC rollover, so they belong to the 7th.
	day, err := l.GetByDay(context.Background(), "2021-05-07")
	require.NoError(t, err)
	assert.Len(t, day, 2)
}

func TestCSVLedger_RecordsMissingFile(t *testing.T) {
	recs, err := NewCSVLedger(t.TempDir()).Records()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLedger_FanOut(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mirror := &fakeMirror{err: errors.New("db down")}
	l := New(NewCSVLedger(t.TempDir()), mirror, nil, zap.New(core))

	post := testPost()
	rec, err := l.Record(context.Background(), "DOGEUSD", post, post.Text, testOrder(models.SideBuy, 1620477000000))
	require.NoError(t, err, "mirror failures are not surfaced")
	assert.NotEmpty(t, rec.ID)
	require.Len(t, mirror.recs, 1)
	assert.Equal(t, rec.ID, mirror.recs[0].ID)

	traces := logs.FilterMessage("trade").All()
	require.Len(t, traces, 1)
	fields := traces[0].ContextMap()
	assert.Equal(t, rec.ID, fields["decision_id"])
	assert.Equal(t, "elonmusk", fields["screen_name"])
	assert.Contains(t, fields["order"], `"commissionAsset":"BNB"`)
	assert.Equal(t, 1, logs.FilterMessage("mirror insert failed").Len())
}

func TestLedger_CSVErrorSurfaced(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	l := New(NewCSVLedger(filepath.Join(blocker, "sub")), nil, nil, nil)
	post := testPost()
	_, err := l.Record(context.Background(), "DOGEUSD", post, post.Text, testOrder(models.SideBuy, 1620477000000))
	assert.Error(t, err)
}
