package ledger

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

// TraceEntry is the human-readable audit record of one order decision.
type TraceEntry struct {
	DecisionID   string
	Side         models.Side
	Ticker       string
	Account      string
	Text         string
	PostID       string
	PostTime     time.Time
	DecisionTime time.Time
	Order        *models.OrderResult
}

// Tracer writes trace entries to the audit log. It never fails the caller.
type Tracer struct {
	log *zap.Logger
}

func NewTracer(log *zap.Logger) *Tracer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracer{log: log.Named("trace")}
}

func (t *Tracer) Trace(e TraceEntry) {
	payload := "null"
	if e.Order != nil {
		if b, err := json.Marshal(e.Order); err == nil {
			payload = string(b)
		} else {
			t.log.Warn("marshal order payload", zap.Error(err))
		}
	}
	t.log.Info("trade",
		zap.String("decision_id", e.DecisionID),
		zap.String("side", string(e.Side)),
		zap.String("ticker", e.Ticker),
		zap.String("screen_name", e.Account),
		zap.String("text", e.Text),
		zap.String("post_id", e.PostID),
		zap.String("post_time", formatTime(e.PostTime)),
		zap.String("decision_time", formatTime(e.DecisionTime)),
		zap.String("order", payload))
}
