package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit funds arriving on the exchange account from outside.
type Deposit struct {
	Asset    string          `json:"asset"`
	Amount   decimal.Decimal `json:"amount"`
	Time     time.Time       `json:"time"`
	Category string          `json:"category"`
}

// Withdrawal funds leaving the exchange account.
type Withdrawal struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
	Time   time.Time       `json:"time"`
}

// Trade a spot fill on a trading pair.
type Trade struct {
	Pair            Pair            `json:"pair"`
	Symbol          string          `json:"symbol"`
	IsBuyer         bool            `json:"isBuyer"`
	Qty             decimal.Decimal `json:"qty"`
	Price           decimal.Decimal `json:"price"`
	QuoteQty        decimal.Decimal `json:"quoteQty"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
	Time            time.Time       `json:"time"`
}

// Conversion an exchange "convert" order. Convert has no separate fee.
type Conversion struct {
	FromAsset  string          `json:"fromAsset"`
	ToAsset    string          `json:"toAsset"`
	FromAmount decimal.Decimal `json:"fromAmount"`
	ToAmount   decimal.Decimal `json:"toAmount"`
	Time       time.Time       `json:"time"`
}

// RawEvents bundles the four raw event streams fetched from the exchange.
// Immutable once fetched, persisted wholesale on every sync.
type RawEvents struct {
	Deposits    []Deposit    `json:"deposits"`
	Withdrawals []Withdrawal `json:"withdrawals"`
	Trades      []Trade      `json:"trades"`
	Conversions []Conversion `json:"conversions"`
}

// EventKind discriminates canonical ledger events.
type EventKind string

const (
	// EventDeposit one-sided credit from outside the ledger.
	EventDeposit EventKind = "deposit"
	// EventWithdrawal one-sided debit to outside the ledger.
	EventWithdrawal EventKind = "withdrawal"
	// EventExchange two-sided exchange of one asset for another.
	EventExchange EventKind = "exchange"
)

// Fee a commission charged in an asset distinct from both trade sides.
type Fee struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// CanonicalEvent is the uniform shape every raw event is normalized into.
// The replayer never mutates canonical events.
type CanonicalEvent struct {
	Time       time.Time       `json:"time"`
	Kind       EventKind       `json:"kind"`
	FromAsset  string          `json:"fromAsset,omitempty"`
	FromAmount decimal.Decimal `json:"fromAmount"`
	ToAsset    string          `json:"toAsset,omitempty"`
	ToAmount   decimal.Decimal `json:"toAmount"`
	Fee        *Fee            `json:"fee,omitempty"`
	// ExternalValue quote-currency value of a deposit or withdrawal at its
	// timestamp. Zero for exchange events.
	ExternalValue decimal.Decimal `json:"externalValue"`
}
