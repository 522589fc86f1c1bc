package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/models"
	"github.com/kjannette/trahn-post-trader/internal/strategy"
)

// Handler receives posts in arrival order, one at a time.
type Handler interface {
	OnPost(ctx context.Context, p models.Post) error
	OnError(err error)
}

// Gate reports whether new buy signals are wanted.
type Gate interface {
	AwaitingBuy() bool
}

type SignalHandler interface {
	OnBuySignal(ctx context.Context, sig strategy.BuySignal) error
}

// Listener filters posts and forwards qualifying ones as buy signals.
type Listener struct {
	rules   strategy.Rules
	gate    Gate
	signals SignalHandler
	log     *zap.Logger
}

func NewListener(rules strategy.Rules, gate Gate, signals SignalHandler, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{rules: rules, gate: gate, signals: signals, log: log.Named("listener")}
}

func (l *Listener) OnPost(ctx context.Context, p models.Post) error {
	if !l.gate.AwaitingBuy() {
		l.log.Debug("post ignored, position open", zap.String("post_id", p.ID))
		return nil
	}
	sig, reason := l.rules.Evaluate(p)
	if sig == nil {
		l.log.Debug("post rejected",
			zap.String("post_id", p.ID),
			zap.String("author", p.AuthorHandle),
			zap.String("reason", string(reason)))
		return nil
	}
	return l.signals.OnBuySignal(ctx, *sig)
}

func (l *Listener) OnError(err error) {
	l.log.Error("stream error", zap.Error(err))
}
