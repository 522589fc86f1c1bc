package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/exchange"
	"github.com/kjannette/trahn-post-trader/internal/feed"
	"github.com/kjannette/trahn-post-trader/internal/risk"
	"github.com/kjannette/trahn-post-trader/internal/strategy"
)

// PostStream is the feed side of a session.
type PostStream interface {
	LookupUserID(ctx context.Context, handle string) (string, error)
	Stream(ctx context.Context, userID string, h feed.Handler) error
}

// SessionDeps are the collaborators a session is built from. The exchange
// and feed constructors run once per session so every restart gets fresh
// connections.
type SessionDeps struct {
	Trader      TraderConfig
	Handle      string
	Guard       *risk.Guardian
	NewExchange func() (exchange.API, error)
	NewFeed     func() (PostStream, error)
	Ledger      Recorder
	Notify      Notifier
	Log         *zap.Logger
}

// Session is one connected run of feed, executor and trader.
type Session struct {
	deps     SessionDeps
	state    *CycleState
	rules    strategy.Rules
	executor *exchange.Executor
	stream   PostStream
}

// NewSessionFactory returns a SessionFactory building sessions from deps.
func NewSessionFactory(deps SessionDeps) SessionFactory {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return func(ctx context.Context, state *CycleState) (Runner, error) {
		rules, err := strategy.NewRules(deps.Handle, deps.Trader.Ticker)
		if err != nil {
			return nil, err
		}
		api, err := deps.NewExchange()
		if err != nil {
			return nil, fmt.Errorf("exchange: %w", err)
		}
		exec, err := exchange.NewExecutor(api, deps.Guard, deps.Trader.Ticker, deps.Trader.USDAmount, deps.Log)
		if err != nil {
			return nil, err
		}
		stream, err := deps.NewFeed()
		if err != nil {
			return nil, fmt.Errorf("feed: %w", err)
		}
		return &Session{deps: deps, state: state, rules: rules, executor: exec, stream: stream}, nil
	}
}

// Run blocks until the stream ends, a timed sell fails, or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	trader := NewTrader(s.deps.Trader, s.state, s.executor, s.deps.Ledger, s.deps.Notify, s.deps.Log)
	trader.Start(ctx)
	defer trader.Stop()

	userID, err := s.stream.LookupUserID(ctx, s.deps.Handle)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.deps.Handle, err)
	}
	s.deps.Log.Info("listening",
		zap.String("handle", s.deps.Handle),
		zap.String("user_id", userID),
		zap.String("ticker", s.deps.Trader.Ticker),
		zap.String("side", string(s.state.Side())))

	listener := feed.NewListener(s.rules, s.state, trader, s.deps.Log)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- s.stream.Stream(ctx, userID, listener)
	}()

	select {
	case err := <-streamErr:
		if err == nil {
			err = errors.New("stream closed")
		}
		return err
	case err := <-trader.Errs():
		cancel()
		<-streamErr
		return err
	case <-ctx.Done():
		<-streamErr
		return ctx.Err()
	}
}
