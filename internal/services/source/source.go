// Package source fetches the raw event streams from an exchange account.
package source

import (
	"context"

	"github.com/vadiminshakov/folio/internal/domain"
)

// Source delivers normalized raw event lists. Every fetch is independently
// fallible: a failure yields an empty list and a log entry, never an error to
// the caller, so one broken endpoint cannot abort a synchronization.
type Source interface {
	Deposits(ctx context.Context) []domain.Deposit
	Withdrawals(ctx context.Context) []domain.Withdrawal
	Trades(ctx context.Context, pair domain.Pair) []domain.Trade
	Conversions(ctx context.Context) []domain.Conversion
}
