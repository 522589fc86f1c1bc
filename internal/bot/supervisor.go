package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/exchange"
)

// Runner is anything the supervisor can run until it fails.
type Runner interface {
	Run(ctx context.Context) error
}

type SessionFactory func(ctx context.Context, state *CycleState) (Runner, error)

type SupervisorConfig struct {
	RestartDelay time.Duration // default 5s
	MaxRestarts  int           // 0 = unlimited
	Label        string        // lifecycle notification subject
}

// Supervisor rebuilds the session after every failure. The cycle state is
// created by the caller and shared by every session.
type Supervisor struct {
	cfg     SupervisorConfig
	factory SessionFactory
	state   *CycleState
	notify  Notifier
	log     *zap.Logger
}

func NewSupervisor(cfg SupervisorConfig, factory SessionFactory, state *CycleState, notify Notifier, log *zap.Logger) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.Label == "" {
		cfg.Label = "Set up new stream"
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{cfg: cfg, factory: factory, state: state, notify: notify, log: log.Named("supervisor")}
}

// Run returns nil on context cancellation and an error only for conditions
// a restart cannot fix.
func (s *Supervisor) Run(ctx context.Context) error {
	restarts := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		snap := s.state.Snapshot()
		s.notify.Notify(s.cfg.Label, fmt.Sprintf("attempt %d, state %s", restarts+1, snap.Side))
		s.log.Info("starting session", zap.Int("attempt", restarts+1), zap.String("side", string(snap.Side)))

		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			s.log.Info("shutdown requested")
			return nil
		}
		if errors.Is(err, exchange.ErrInvalidSide) {
			s.log.Error("fatal session error", zap.Error(err))
			return err
		}

		restarts++
		if s.cfg.MaxRestarts > 0 && restarts > s.cfg.MaxRestarts {
			return fmt.Errorf("giving up after %d restarts: %w", s.cfg.MaxRestarts, err)
		}
		s.log.Error("session ended, restarting",
			zap.Error(err),
			zap.Duration("delay", s.cfg.RestartDelay),
			zap.Int("restarts", restarts))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.RestartDelay):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	sess, err := s.factory(ctx, s.state)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}
	err = sess.Run(ctx)
	if err == nil {
		err = errors.New("session returned without error")
	}
	return err
}
