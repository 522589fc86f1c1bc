package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshot(usd, bnbUSD string, base string, held, price string) models.BalanceSnapshot {
	s := models.BalanceSnapshot{
		"USD": {Amount: d(usd), PriceUSD: d("1"), ValueUSD: d(usd)},
	}
	if bnbUSD != "" {
		s["BNB"] = models.AssetBalance{Amount: d("1"), PriceUSD: d(bnbUSD), ValueUSD: d(bnbUSD)}
	}
	if base != "" {
		s[base] = models.AssetBalance{Amount: d(held), PriceUSD: d(price), ValueUSD: d(held).Mul(d(price))}
	}
	return s
}

// --- CheckBuy ---

func TestCheckBuy_NotEnoughUSD(t *testing.T) {
	g := NewGuardian(Limits{})
	err := g.CheckBuy(snapshot("9.5", "0", "", "", ""), d("10"))
	if err == nil {
		t.Fatal("expected buy to be blocked (9.5 < 10)")
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	t.Logf("Correctly blocked: %v", err)
}

func TestCheckBuy_FeeUncovered(t *testing.T) {
	g := NewGuardian(Limits{})
	// 10.005 - 10 = 0.005 < fee 0.01, and no BNB
	if err := g.CheckBuy(snapshot("10.005", "", "", "", ""), d("10")); err == nil {
		t.Fatal("expected buy to be blocked when fee cannot be covered")
	}
}

func TestCheckBuy_FeeCoveredByFeeAsset(t *testing.T) {
	g := NewGuardian(Limits{})
	if err := g.CheckBuy(snapshot("10", "5", "", "", ""), d("10")); err != nil {
		t.Fatalf("expected buy allowed when BNB covers fee, got: %v", err)
	}
}

func TestCheckBuy_Allowed(t *testing.T) {
	g := NewGuardian(Limits{})
	if err := g.CheckBuy(snapshot("100", "", "", "", ""), d("10")); err != nil {
		t.Fatalf("expected buy allowed, got: %v", err)
	}
}

// --- CheckSell ---

func TestCheckSell_HeldLessThanExecuted(t *testing.T) {
	g := NewGuardian(Limits{})
	err := g.CheckSell(snapshot("100", "", "DOGE", "14", "1"), "DOGE", d("15"), d("10"))
	if err == nil {
		t.Fatal("expected sell blocked when position smaller than expected")
	}
	t.Logf("Correctly blocked: %v", err)
}

func TestCheckSell_BelowMinimumSize(t *testing.T) {
	g := NewGuardian(Limits{})
	// 0.5 * 15 = 7.5 < 10, even though 20 are held
	err := g.CheckSell(snapshot("100", "", "DOGE", "20", "0.5"), "DOGE", d("15"), d("10"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected sell blocked below minimum size, got %v", err)
	}
	t.Logf("Correctly blocked: %v", err)
}

func TestCheckSell_FeeUncovered(t *testing.T) {
	g := NewGuardian(Limits{})
	err := g.CheckSell(snapshot("0.001", "0.001", "DOGE", "20", "1"), "DOGE", d("15"), d("10"))
	if err == nil {
		t.Fatal("expected sell blocked when neither USD nor BNB covers fee")
	}
}

func TestCheckSell_HeldCheckWinsOverMinimumSize(t *testing.T) {
	g := NewGuardian(Limits{})
	err := g.CheckSell(snapshot("0", "", "DOGE", "1", "0.5"), "DOGE", d("15"), d("10"))
	var ie *InsufficientError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InsufficientError, got %v", err)
	}
	if ie.Side != models.SideSell {
		t.Fatalf("expected SELL side, got %s", ie.Side)
	}
	if want := "not enough DOGE to sell"; len(ie.Reason) < len(want) || ie.Reason[:len(want)] != want {
		t.Fatalf("expected held-quantity reason first, got %q", ie.Reason)
	}
}

func TestCheckSell_Allowed(t *testing.T) {
	g := NewGuardian(Limits{})
	if err := g.CheckSell(snapshot("1", "", "DOGE", "20", "1"), "DOGE", d("15"), d("10")); err != nil {
		t.Fatalf("expected sell allowed, got: %v", err)
	}
}

func TestNewGuardian_Defaults(t *testing.T) {
	g := NewGuardian(Limits{FeeAsset: "XYZ"})
	l := g.Limits()
	if !l.FeeRate.Equal(d("0.001")) || !l.MinOrderUSD.Equal(d("10")) || l.QuoteAsset != "USD" {
		t.Fatalf("defaults not applied: %+v", l)
	}
	if l.FeeAsset != "XYZ" {
		t.Fatalf("explicit fee asset overridden: %s", l.FeeAsset)
	}
	if !g.Fee(d("10")).Equal(d("0.01")) {
		t.Fatalf("expected fee 0.01, got %s", g.Fee(d("10")))
	}
}
