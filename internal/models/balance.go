package models

import "github.com/shopspring/decimal"

type AssetBalance struct {
	Amount   decimal.Decimal `json:"amount"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
	ValueUSD decimal.Decimal `json:"valueUsd"`
}

// BalanceSnapshot maps asset symbol to holdings. Missing assets read as zero.
type BalanceSnapshot map[string]AssetBalance

func (b BalanceSnapshot) Get(asset string) AssetBalance {
	if v, ok := b[asset]; ok {
		return v
	}
	return AssetBalance{}
}

func (b BalanceSnapshot) Amount(asset string) decimal.Decimal {
	return b.Get(asset).Amount
}

func (b BalanceSnapshot) PriceUSD(asset string) decimal.Decimal {
	return b.Get(asset).PriceUSD
}

func (b BalanceSnapshot) ValueUSD(asset string) decimal.Decimal {
	return b.Get(asset).ValueUSD
}
