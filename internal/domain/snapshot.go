package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenPosition a non-base asset currently held.
type OpenPosition struct {
	Asset        string          `json:"asset"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgPrice     decimal.Decimal `json:"avgPrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Value        decimal.Decimal `json:"value"`
	UnrealizedPL decimal.Decimal `json:"unrealizedPL"`
}

// ClosedPosition a non-base asset fully sold off with realized profit left behind.
type ClosedPosition struct {
	Asset      string          `json:"asset"`
	RealizedPL decimal.Decimal `json:"realizedPL"`
}

// DistributionSlice one asset's share of the current portfolio value.
type DistributionSlice struct {
	Asset string          `json:"asset"`
	Value decimal.Decimal `json:"value"`
}

// MonthlyProfit realized profit bucketed by calendar month (YYYY-MM).
type MonthlyProfit struct {
	Month  string          `json:"month"`
	Profit decimal.Decimal `json:"profit"`
}

// TaxReport flat-rate tax estimate for one calendar year. An estimate only,
// not a compliance figure.
type TaxReport struct {
	Policy       string          `json:"policy"`
	Year         int             `json:"year"`
	TaxableGain  decimal.Decimal `json:"taxableGain"`
	EstimatedTax decimal.Decimal `json:"estimatedTax"`
	Note         string          `json:"note"`
}

// PortfolioSnapshot the full result of one synchronization. Recomputed
// wholesale on every sync, never mutated incrementally.
type PortfolioSnapshot struct {
	SyncID          string              `json:"syncId"`
	SyncedAt        time.Time           `json:"syncedAt"`
	CurrentValue    decimal.Decimal     `json:"currentValue"`
	InvestedCapital decimal.Decimal     `json:"investedCapital"`
	RealizedPL      decimal.Decimal     `json:"realizedPL"`
	UnrealizedPL    decimal.Decimal     `json:"unrealizedPL"`
	OpenPositions   []OpenPosition      `json:"openPositions"`
	ClosedPositions []ClosedPosition    `json:"closedPositions"`
	Distribution    []DistributionSlice `json:"distribution"`
	MonthlyProfits  []MonthlyProfit     `json:"monthlyProfits"`
	Tax             TaxReport           `json:"tax"`
}

// ProfitEvent one realized profit (or fee loss) with its timestamp. The asset
// is the one that was sold or spent to realize the amount.
type ProfitEvent struct {
	Time   time.Time       `json:"time"`
	Asset  string          `json:"asset"`
	Profit decimal.Decimal `json:"profit"`
}

// ValuePoint portfolio headline figures captured once per sync for the
// value-history chart and SSE stream.
type ValuePoint struct {
	Timestamp    time.Time       `json:"ts"`
	SyncID       string          `json:"sync_id"`
	Value        decimal.Decimal `json:"value"`
	Invested     decimal.Decimal `json:"invested"`
	RealizedPL   decimal.Decimal `json:"realized_pl"`
	UnrealizedPL decimal.Decimal `json:"unrealized_pl"`
}

// ValuePointRecord bundles a value point with its history store index.
type ValuePointRecord struct {
	Index uint64
	Point ValuePoint
}
