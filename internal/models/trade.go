package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const OrderTypeMarket OrderType = "MARKET"

// OrderRequest is a market order. Buys are sized by QuoteQty (USD notional),
// sells by Qty (base asset units).
type OrderRequest struct {
	Symbol   string
	Side     Side
	Type     OrderType
	QuoteQty decimal.Decimal
	Qty      decimal.Decimal
	ClientID string
}

type Fill struct {
	Price           decimal.Decimal `json:"price"`
	Qty             decimal.Decimal `json:"qty"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
}

type OrderResult struct {
	Symbol             string          `json:"symbol"`
	OrderID            int64           `json:"orderId"`
	ClientOrderID      string          `json:"clientOrderId"`
	TransactTime       int64           `json:"transactTime"` // unix ms
	ExecutedQty        decimal.Decimal `json:"executedQty"`
	CumulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	Status             string          `json:"status"`
	Type               OrderType       `json:"type"`
	Side               Side            `json:"side"`
	Fills              []Fill          `json:"fills"`
}

// FilledAt returns the exchange transaction time, or the zero time when unset.
func (o *OrderResult) FilledAt() time.Time {
	if o == nil || o.TransactTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(o.TransactTime).UTC()
}

// FirstFill returns the first fill, or a zero Fill for orders reported without fills.
func (o *OrderResult) FirstFill() Fill {
	if o == nil || len(o.Fills) == 0 {
		return Fill{}
	}
	return o.Fills[0]
}

// LedgerRecord is one row of the trade ledger.
type LedgerRecord struct {
	ID              string          `json:"id"`
	Ticker          string          `json:"ticker"`
	Account         string          `json:"account"`
	Text            string          `json:"text"`
	PostID          string          `json:"postId"`
	PostTime        time.Time       `json:"postTime"`
	Price           decimal.Decimal `json:"price"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
	Quantity        decimal.Decimal `json:"quantity"`
	USDValue        decimal.Decimal `json:"usdValue"`
	OrderType       OrderType       `json:"orderType"`
	Side            Side            `json:"side"`
	FilledAt        time.Time       `json:"filledAt"`
}

// NewLedgerRecord builds the ledger row for an executed order triggered by post.
func NewLedgerRecord(ticker string, post Post, text string, order *OrderResult) LedgerRecord {
	fill := order.FirstFill()
	return LedgerRecord{
		Ticker:          ticker,
		Account:         post.AuthorHandle,
		Text:            text,
		PostID:          post.ID,
		PostTime:        post.CreatedAt,
		Price:           fill.Price,
		Commission:      fill.Commission,
		CommissionAsset: fill.CommissionAsset,
		Quantity:        order.ExecutedQty,
		USDValue:        order.CumulativeQuoteQty,
		OrderType:       order.Type,
		Side:            order.Side,
		FilledAt:        order.FilledAt(),
	}
}

type TradeStats struct {
	TotalTrades int64           `json:"totalTrades"`
	BuyCount    int64           `json:"buyCount"`
	SellCount   int64           `json:"sellCount"`
	TotalVolume decimal.Decimal `json:"totalVolume"`
	FirstTrade  *time.Time      `json:"firstTrade"`
	LastTrade   *time.Time      `json:"lastTrade"`
}

// ComputeStats aggregates ledger rows the same way the trade_history stats query does.
func ComputeStats(records []LedgerRecord) TradeStats {
	var s TradeStats
	for i := range records {
		r := records[i]
		s.TotalTrades++
		switch r.Side {
		case SideBuy:
			s.BuyCount++
		case SideSell:
			s.SellCount++
		}
		s.TotalVolume = s.TotalVolume.Add(r.USDValue)
		ts := r.FilledAt
		if s.FirstTrade == nil || ts.Before(*s.FirstTrade) {
			s.FirstTrade = &ts
		}
		if s.LastTrade == nil || ts.After(*s.LastTrade) {
			s.LastTrade = &ts
		}
	}
	return s
}
