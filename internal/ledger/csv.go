package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-post-trader/internal/models"
	"github.com/kjannette/trahn-post-trader/internal/repository"
)

const (
	FileName   = "saved_trade_data.csv"
	DateLayout = "01/02/2006: 15:04:05"
)

var Header = []string{
	"Ticker",
	"Twitter screen name",
	"Text",
	"Status ID",
	"Status date",
	"Buy/sell price (USD)",
	"Buy/sell commission",
	"Buy/sell commission asset",
	"Buy/sell quantity",
	"Cost in USD",
	"Buy/sell type",
	"Buy/sell side",
	"Buy/sell date time",
}

var textSanitizer = strings.NewReplacer(",", " ", "\r\n", " ", "\n", " ", "\r", " ")

// SanitizeText replaces the characters that would break a naive CSV reader.
func SanitizeText(s string) string {
	return textSanitizer.Replace(s)
}

// CSVLedger appends trade rows to saved_trade_data.csv. It assumes a single
// writing process per file.
type CSVLedger struct {
	mu     sync.Mutex
	path   string
	create func(path string) (io.WriteCloser, error)
}

func NewCSVLedger(dir string) *CSVLedger {
	return &CSVLedger{path: filepath.Join(dir, FileName), create: createExclusive}
}

// createExclusive fails with os.ErrExist when the ledger is already on disk.
func createExclusive(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

func (l *CSVLedger) Path() string { return l.path }

// Record appends one row, writing the header first if the file does not exist.
func (l *CSVLedger) Record(rec models.LedgerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureHeader(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(toRow(rec)); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

func (l *CSVLedger) ensureHeader() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := l.create(l.path)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	// A file left without its header would never get one.
	w := csv.NewWriter(f)
	w.Write(Header)
	w.Flush()
	err = w.Error()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(l.path)
		return fmt.Errorf("write ledger header: %w", err)
	}
	return nil
}

func toRow(r models.LedgerRecord) []string {
	return []string{
		r.Ticker,
		r.Account,
		SanitizeText(r.Text),
		r.PostID,
		formatTime(r.PostTime),
		r.Price.String(),
		r.Commission.String(),
		r.CommissionAsset,
		r.Quantity.String(),
		r.USDValue.String(),
		string(r.OrderType),
		string(r.Side),
		formatTime(r.FilledAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// --- reading ---

// Records reads every row back in file order. A missing file has no records.
func (l *CSVLedger) Records() ([]models.LedgerRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	var out []models.LedgerRecord
	for line := 0; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger line %d: %w", line+1, err)
		}
		if line == 0 && row[0] == Header[0] {
			continue
		}
		rec, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse ledger line %d: %w", line+1, err)
		}
		rec.ID = strconv.Itoa(line)
		out = append(out, rec)
	}
	return out, nil
}

func fromRow(row []string) (models.LedgerRecord, error) {
	var rec models.LedgerRecord
	var err error
	rec.Ticker = row[0]
	rec.Account = row[1]
	rec.Text = row[2]
	rec.PostID = row[3]
	if rec.PostTime, err = parseTime(row[4]); err != nil {
		return rec, err
	}
	if rec.Price, err = parseDecimal(row[5]); err != nil {
		return rec, err
	}
	if rec.Commission, err = parseDecimal(row[6]); err != nil {
		return rec, err
	}
	rec.CommissionAsset = row[7]
	if rec.Quantity, err = parseDecimal(row[8]); err != nil {
		return rec, err
	}
	if rec.USDValue, err = parseDecimal(row[9]); err != nil {
		return rec, err
	}
	rec.OrderType = models.OrderType(row[10])
	rec.Side = models.Side(row[11])
	rec.FilledAt, err = parseTime(row[12])
	return rec, err
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// --- trade source ---

// GetAll returns up to limit records, newest first.
func (l *CSVLedger) GetAll(ctx context.Context, limit int) ([]models.LedgerRecord, error) {
	recs, err := l.Records()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].FilledAt.After(recs[j].FilledAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// GetByDay returns the records filled on a trading day, oldest first.
func (l *CSVLedger) GetByDay(ctx context.Context, tradingDay string) ([]models.LedgerRecord, error) {
	recs, err := l.Records()
	if err != nil {
		return nil, err
	}
	var out []models.LedgerRecord
	for _, r := range recs {
		if repository.TradingDay(r.FilledAt) == tradingDay {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *CSVLedger) GetStats(ctx context.Context) (*models.TradeStats, error) {
	recs, err := l.Records()
	if err != nil {
		return nil, err
	}
	s := models.ComputeStats(recs)
	return &s, nil
}
