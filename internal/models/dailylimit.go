package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/money"
)

// DefaultDailyLimit is the ceiling applied to every account per calendar day
var DefaultDailyLimit = money.MustParse("1000.00")

// DailyTransferLimit tracks cumulative outgoing transfer usage for one
// account on one calendar day. Identity is (AccountID, Date); a row is
// created lazily the first time an account transfers on a given day.
type DailyTransferLimit struct {
	AccountID  uuid.UUID
	Date       time.Time
	UsedAmount money.Money
	DailyLimit money.Money
}

// DateOf truncates t to its calendar day in UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDailyTransferLimit creates today's ledger row with zero usage and the
// default ceiling
func NewDailyTransferLimit(accountID uuid.UUID) DailyTransferLimit {
	return DailyTransferLimit{
		AccountID:  accountID,
		Date:       DateOf(time.Now()),
		UsedAmount: money.Zero(),
		DailyLimit: DefaultDailyLimit,
	}
}

// AvailableLimit returns ceiling minus usage
func (d *DailyTransferLimit) AvailableLimit() money.Money {
	return d.DailyLimit.Sub(d.UsedAmount)
}

// ValidateLimit fails when used+amount would exceed the ceiling.
// Reaching the ceiling exactly is allowed.
func (d *DailyTransferLimit) ValidateLimit(amount money.Money) error {
	if d.UsedAmount.Add(amount).GreaterThan(d.DailyLimit) {
		return apperrors.DailyLimitExceeded(
			d.DailyLimit.Formatted(),
			d.UsedAmount.Formatted(),
			amount.Formatted(),
		)
	}
	return nil
}

// UseLimit records usage. Revalidates first; usage never decreases.
// Not idempotent.
func (d *DailyTransferLimit) UseLimit(amount money.Money) error {
	if err := d.ValidateLimit(amount); err != nil {
		return err
	}

	d.UsedAmount = d.UsedAmount.Add(amount)
	return nil
}

func (d *DailyTransferLimit) IsToday() bool {
	return DateOf(time.Now()).Equal(d.Date)
}

// UsagePercentage reports used/ceiling in percent, for reporting only
func (d *DailyTransferLimit) UsagePercentage() float64 {
	if d.DailyLimit.IsZero() {
		return 0
	}

	pct, _ := d.UsedAmount.Decimal().
		Div(d.DailyLimit.Decimal()).
		Mul(decimal.NewFromInt(100)).
		Float64()
	return pct
}
