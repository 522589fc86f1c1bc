package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/ids"
	"github.com/kjannette/trahn-post-trader/internal/models"
)

// Mirror receives a copy of every ledger row, e.g. a database table.
type Mirror interface {
	Insert(ctx context.Context, rec models.LedgerRecord) error
}

// Ledger records executed orders. The CSV file is authoritative; the
// mirror and the trace are secondary.
type Ledger struct {
	csv    *CSVLedger
	mirror Mirror
	tracer *Tracer
	log    *zap.Logger
	now    func() time.Time
}

func New(csv *CSVLedger, mirror Mirror, tracer *Tracer, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	if tracer == nil {
		tracer = NewTracer(log)
	}
	return &Ledger{csv: csv, mirror: mirror, tracer: tracer, log: log.Named("ledger"), now: time.Now}
}

func (l *Ledger) CSV() *CSVLedger { return l.csv }

// Record traces the decision and appends the row. Only a CSV failure is returned.
func (l *Ledger) Record(ctx context.Context, ticker string, post models.Post, text string, order *models.OrderResult) (models.LedgerRecord, error) {
	rec := models.NewLedgerRecord(ticker, post, text, order)
	rec.ID = ids.New()

	l.tracer.Trace(TraceEntry{
		DecisionID:   rec.ID,
		Side:         rec.Side,
		Ticker:       ticker,
		Account:      post.AuthorHandle,
		Text:         text,
		PostID:       post.ID,
		PostTime:     post.CreatedAt,
		DecisionTime: l.now(),
		Order:        order,
	})

	if err := l.csv.Record(rec); err != nil {
		return rec, fmt.Errorf("ledger %s: %w", l.csv.Path(), err)
	}

	if l.mirror != nil {
		if err := l.mirror.Insert(ctx, rec); err != nil {
			l.log.Warn("mirror insert failed", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	return rec, nil
}
