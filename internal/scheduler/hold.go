package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// HoldTimer fires a callback once at a deadline, on its own goroutine.
// Arming again replaces the pending deadline.
type HoldTimer struct {
	onFire func(now time.Time)
	log    *zap.Logger

	mu       sync.Mutex
	running  bool
	gen      uint64
	stopCh   chan struct{}
	deadline time.Time
}

func NewHoldTimer(onFire func(now time.Time), log *zap.Logger) *HoldTimer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HoldTimer{onFire: onFire, log: log.Named("hold-timer")}
}

func (h *HoldTimer) Arm(deadline time.Time) {
	h.mu.Lock()
	if h.running {
		close(h.stopCh)
	}
	h.gen++
	gen := h.gen
	stop := make(chan struct{})
	h.stopCh = stop
	h.running = true
	h.deadline = deadline
	h.mu.Unlock()

	wait := time.Until(deadline)
	if wait < 0 {
		wait = 0
	}
	h.log.Info("armed", zap.Time("deadline", deadline), zap.Duration("in", wait))

	go func() {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-stop:
			return
		case <-t.C:
		}

		h.mu.Lock()
		if h.gen != gen {
			h.mu.Unlock()
			return
		}
		h.running = false
		h.mu.Unlock()

		h.onFire(time.Now())
	}()
}

func (h *HoldTimer) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	if !h.running {
		return
	}
	close(h.stopCh)
	h.running = false
	h.log.Info("stopped")
}

// Running reports whether a deadline is pending.
func (h *HoldTimer) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *HoldTimer) Deadline() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deadline
}
