package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/models"
	"github.com/kjannette/trahn-post-trader/internal/repository"
)

type tradeJSON struct {
	ID              string `json:"id"`
	T               int64  `json:"t"`
	Side            string `json:"side"`
	Ticker          string `json:"ticker"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	USDValue        string `json:"usdValue"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Account         string `json:"account"`
	Text            string `json:"text"`
	PostID          string `json:"postId"`
}

func toTradeJSON(trades []models.LedgerRecord) []tradeJSON {
	out := make([]tradeJSON, len(trades))
	for i, t := range trades {
		out[i] = tradeJSON{
			ID: t.ID, T: t.FilledAt.UnixMilli(), Side: string(t.Side), Ticker: t.Ticker,
			Price: t.Price.String(), Qty: t.Quantity.String(), USDValue: t.USDValue.String(),
			Commission: t.Commission.String(), CommissionAsset: t.CommissionAsset,
			Account: t.Account, Text: t.Text, PostID: t.PostID,
		}
	}
	return out
}

func (s *Server) handleTradesToday(w http.ResponseWriter, r *http.Request) {
	today := repository.TradingDayNow()
	trades, err := s.trades.GetByDay(r.Context(), today)
	if err != nil {
		s.log.Error("fetch today's trades", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(trades))
}

func (s *Server) handleTradesByDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	trades, err := s.trades.GetByDay(r.Context(), date)
	if err != nil {
		s.log.Error("fetch trades", zap.String("day", date), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(trades))
}

func (s *Server) handleAllTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)

	trades, err := s.trades.GetAll(r.Context(), limit)
	if err != nil {
		s.log.Error("fetch all trades", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(trades))
}

func (s *Server) handleTradeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.trades.GetStats(r.Context())
	if err != nil {
		s.log.Error("fetch trade stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch trade stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
