// Package tax derives a flat-rate tax estimate from a replayed ledger.
// The figures are simplifications for planning, not a compliance engine.
package tax

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/pricer"
	"github.com/vadiminshakov/folio/internal/services/replay"
	"go.uber.org/zap"
)

// Policy selects how the taxable amount for a year is derived. A deployment
// configures exactly one policy.
type Policy string

const (
	// PolicyRealizedGains taxes realized profit events of the calendar year.
	PolicyRealizedGains Policy = "realized_gains"
	// PolicyCapitalFlow taxes withdrawals minus deposits of the calendar
	// year, in quote-currency equivalent.
	PolicyCapitalFlow Policy = "capital_flow"
)

// ErrInvalidYear is returned for tax years outside the plausible range.
var ErrInvalidYear = errors.New("invalid tax year")

// earliest year with any exchange-traded crypto activity worth taxing
const minTaxYear = 2009

// ValidateYear checks a user-supplied tax year. On failure the caller is
// expected to fall back to the current year.
func ValidateYear(year int, now time.Time) (int, error) {
	if year < minTaxYear || year > now.Year() {
		return now.Year(), errors.Wrapf(ErrInvalidYear, "%d", year)
	}
	return year, nil
}

// Estimator computes the flat-rate estimate for the configured policy.
type Estimator struct {
	policy Policy
	rate   decimal.Decimal
	base   domain.BaseAssets
	oracle pricer.Pricer
	logger *zap.Logger
}

// New creates an estimator. The rate is a fraction, e.g. 0.30.
func New(policy Policy, rate decimal.Decimal, base domain.BaseAssets, oracle pricer.Pricer, logger *zap.Logger) (*Estimator, error) {
	switch policy {
	case PolicyRealizedGains, PolicyCapitalFlow:
	default:
		return nil, fmt.Errorf("unsupported tax policy: %s", policy)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate must be within [0, 1], got %s", rate.String())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{policy: policy, rate: rate, base: base, oracle: oracle, logger: logger}, nil
}

// Estimate produces the report for the given calendar year. Tax is due only
// on a positive taxable amount.
func (e *Estimator) Estimate(ctx context.Context, year int, res *replay.Result, raw domain.RawEvents) domain.TaxReport {
	var taxable decimal.Decimal
	switch e.policy {
	case PolicyCapitalFlow:
		taxable = e.capitalFlow(ctx, year, raw)
	default:
		taxable = realizedGains(year, res.ProfitEvents)
	}

	tax := decimal.Zero
	if taxable.IsPositive() {
		tax = taxable.Mul(e.rate)
	}

	return domain.TaxReport{
		Policy:       string(e.policy),
		Year:         year,
		TaxableGain:  taxable,
		EstimatedTax: tax,
		Note:         "flat-rate estimate, not a binding tax computation",
	}
}

func realizedGains(year int, events []domain.ProfitEvent) decimal.Decimal {
	sum := decimal.Zero
	for _, ev := range events {
		if ev.Time.Year() == year {
			sum = sum.Add(ev.Profit)
		}
	}
	return sum
}

// capitalFlow sums the year's withdrawals minus deposits in quote
// equivalent, converting non-base flows at their historical price.
func (e *Estimator) capitalFlow(ctx context.Context, year int, raw domain.RawEvents) decimal.Decimal {
	deposits := decimal.Zero
	for _, d := range raw.Deposits {
		if d.Time.Year() != year {
			continue
		}
		deposits = deposits.Add(pricer.ValueAt(ctx, e.oracle, e.base, d.Asset, d.Amount, d.Time, e.logger))
	}

	withdrawals := decimal.Zero
	for _, w := range raw.Withdrawals {
		if w.Time.Year() != year {
			continue
		}
		withdrawals = withdrawals.Add(pricer.ValueAt(ctx, e.oracle, e.base, w.Asset, w.Amount, w.Time, e.logger))
	}

	return withdrawals.Sub(deposits)
}
