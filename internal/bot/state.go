package bot

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

type Phase string

const (
	AwaitingBuy  Phase = "AwaitingBuy"
	AwaitingSell Phase = "AwaitingSell"
)

var ErrNotAwaitingBuy = errors.New("position already open")

// CycleState is the buy/sell cycle of one process. It outlives sessions.
type CycleState struct {
	mu          sync.RWMutex
	hold        time.Duration
	side        Phase
	buyTime     *time.Time
	triggerText string
	executedQty decimal.Decimal
	post        models.Post
}

func NewCycleState(hold time.Duration) *CycleState {
	return &CycleState{hold: hold, side: AwaitingBuy}
}

// StateSnapshot is a point-in-time copy for readers.
type StateSnapshot struct {
	Side        Phase           `json:"side"`
	BuyTime     *time.Time      `json:"buyTime,omitempty"`
	SellAt      *time.Time      `json:"sellAt,omitempty"`
	TriggerText string          `json:"triggerText,omitempty"`
	ExecutedQty decimal.Decimal `json:"executedQty"`
	PostID      string          `json:"postId,omitempty"`
	Hold        string          `json:"hold"`
}

func (s *CycleState) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StateSnapshot{
		Side:        s.side,
		TriggerText: s.triggerText,
		ExecutedQty: s.executedQty,
		PostID:      s.post.ID,
		Hold:        s.hold.String(),
	}
	if s.buyTime != nil {
		bt := *s.buyTime
		at := bt.Add(s.hold)
		snap.BuyTime, snap.SellAt = &bt, &at
	}
	return snap
}

func (s *CycleState) Side() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.side
}

func (s *CycleState) AwaitingBuy() bool {
	return s.Side() == AwaitingBuy
}

// SellDeadline returns buy time plus hold while a position is open.
func (s *CycleState) SellDeadline() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.side != AwaitingSell || s.buyTime == nil {
		return time.Time{}, false
	}
	return s.buyTime.Add(s.hold), true
}

// SellDue reports whether now is at or past the sell deadline.
func (s *CycleState) SellDue(now time.Time) bool {
	deadline, ok := s.SellDeadline()
	return ok && !now.Before(deadline)
}

func (s *CycleState) open(buyTime time.Time, text string, qty decimal.Decimal, post models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.side != AwaitingBuy {
		return ErrNotAwaitingBuy
	}
	s.side = AwaitingSell
	s.buyTime = &buyTime
	s.triggerText = text
	s.executedQty = qty
	s.post = post
	return nil
}

func (s *CycleState) position() (string, decimal.Decimal, models.Post) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.triggerText, s.executedQty, s.post
}

func (s *CycleState) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.side = AwaitingBuy
	s.buyTime = nil
	s.triggerText = ""
	s.executedQty = decimal.Zero
	s.post = models.Post{}
}
