package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/models"
	"github.com/kjannette/trahn-post-trader/internal/risk"
	"github.com/kjannette/trahn-post-trader/internal/scheduler"
	"github.com/kjannette/trahn-post-trader/internal/strategy"
)

type Notifier interface {
	Notify(subject, body string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) {}

type Recorder interface {
	Record(ctx context.Context, ticker string, post models.Post, text string, order *models.OrderResult) (models.LedgerRecord, error)
}

type OrderPlacer interface {
	Buy(ctx context.Context, usdAmount decimal.Decimal) (*models.OrderResult, error)
	Sell(ctx context.Context, qty decimal.Decimal) (*models.OrderResult, error)
}

type TraderConfig struct {
	Ticker    string
	USDAmount decimal.Decimal
	Hold      time.Duration
	// SellRecheckInterval re-arms the hold timer after a skipped sell.
	// Zero leaves the position pending until the next session starts.
	SellRecheckInterval time.Duration
}

// Trader runs the buy/sell state machine for one session. Signal handling
// and sell checks are serialized by mu. Orders run on a context detached
// from the session so a dropped stream never aborts a submitted order.
type Trader struct {
	cfg    TraderConfig
	state  *CycleState
	exec   OrderPlacer
	ledger Recorder
	notify Notifier
	timer  *scheduler.HoldTimer
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	stopped bool
	errs    chan error
}

func NewTrader(cfg TraderConfig, state *CycleState, exec OrderPlacer, ledger Recorder, notify Notifier, log *zap.Logger) *Trader {
	if log == nil {
		log = zap.NewNop()
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	t := &Trader{
		cfg:    cfg,
		state:  state,
		exec:   exec,
		ledger: ledger,
		notify: notify,
		log:    log.Named("trader"),
		now:    time.Now,
		ctx:    context.Background(),
		errs:   make(chan error, 1),
	}
	t.timer = scheduler.NewHoldTimer(t.onHoldElapsed, log)
	return t
}

// Start re-arms the hold timer when the preserved state has an open position.
func (t *Trader) Start(ctx context.Context) {
	t.mu.Lock()
	t.ctx = context.WithoutCancel(ctx)
	t.mu.Unlock()

	if deadline, ok := t.state.SellDeadline(); ok {
		t.log.Info("resuming open position", zap.Time("sell_at", deadline))
		t.timer.Arm(deadline)
	}
}

// Stop waits for an in-flight buy or timed sell to finish, then disarms
// the hold timer. A stopped trader's timer never places another order.
func (t *Trader) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.timer.Stop()
}

// Errs delivers order failures from the hold timer goroutine.
func (t *Trader) Errs() <-chan error {
	return t.errs
}

// OnBuySignal opens a position. Signals outside AwaitingBuy are ignored and
// a buy skipped for lack of funds leaves the state unchanged.
func (t *Trader) OnBuySignal(ctx context.Context, sig strategy.BuySignal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.AwaitingBuy() {
		t.log.Debug("signal ignored, position open", zap.String("post_id", sig.Post.ID))
		return nil
	}

	t.log.Info("buy signal", zap.String("post_id", sig.Post.ID), zap.String("text", sig.Text))
	ctx = context.WithoutCancel(ctx)
	order, err := t.exec.Buy(ctx, t.cfg.USDAmount)
	if errors.Is(err, risk.ErrInsufficientFunds) {
		t.log.Warn("buy skipped", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("buy: %w", err)
	}

	buyTime := order.FilledAt()
	if buyTime.IsZero() {
		buyTime = t.now()
	}

	t.record(ctx, sig.Post, sig.Text, order)
	t.notifyTrade(order)

	if err := t.state.open(buyTime, sig.Text, order.ExecutedQty, sig.Post); err != nil {
		return err
	}
	t.timer.Arm(buyTime.Add(t.cfg.Hold))
	return nil
}

// CheckSell closes the position once the hold has elapsed.
func (t *Trader) CheckSell(ctx context.Context, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkSell(context.WithoutCancel(ctx), now)
}

func (t *Trader) checkSell(ctx context.Context, now time.Time) error {
	if t.state.Side() != AwaitingSell {
		return nil
	}
	if !t.state.SellDue(now) {
		deadline, _ := t.state.SellDeadline()
		t.log.Debug("hold not elapsed", zap.Time("sell_at", deadline))
		return nil
	}

	text, qty, post := t.state.position()
	order, err := t.exec.Sell(ctx, qty)
	if errors.Is(err, risk.ErrInsufficientFunds) {
		t.log.Warn("sell skipped", zap.Error(err))
		if t.cfg.SellRecheckInterval > 0 {
			t.timer.Arm(now.Add(t.cfg.SellRecheckInterval))
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("sell: %w", err)
	}

	t.record(ctx, post, text, order)
	t.notifyTrade(order)
	t.state.close()
	return nil
}

func (t *Trader) onHoldElapsed(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	// Timers can wake marginally early against the wall clock.
	if deadline, ok := t.state.SellDeadline(); ok && now.Before(deadline) {
		t.timer.Arm(deadline)
		return
	}
	if err := t.checkSell(t.ctx, now); err != nil {
		select {
		case t.errs <- err:
		default:
			t.log.Error("dropped sell error", zap.Error(err))
		}
	}
}

func (t *Trader) record(ctx context.Context, post models.Post, text string, order *models.OrderResult) {
	if t.ledger == nil {
		return
	}
	if _, err := t.ledger.Record(ctx, t.cfg.Ticker, post, text, order); err != nil {
		t.log.Error("ledger write failed", zap.String("side", string(order.Side)), zap.Error(err))
		t.notify.Notify("Ledger write failed", err.Error())
	}
}

func (t *Trader) notifyTrade(order *models.OrderResult) {
	body, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		body = []byte(err.Error())
	}
	t.notify.Notify(fmt.Sprintf("%s %s", order.Side, t.cfg.Ticker), string(body))
}
