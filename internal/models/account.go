package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/money"
)

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
	AccountStatusBlocked  AccountStatus = "BLOCKED"
	AccountStatusClosed   AccountStatus = "CLOSED"
)

// Account is the banking-ledger entity. Balance and AvailableLimit are
// mutated only through Debit and Credit, which enforce the invariants.
type Account struct {
	ID             uuid.UUID
	Number         string
	Agency         string
	ClientID       uuid.UUID
	Balance        money.Money
	AvailableLimit money.Money
	Status         AccountStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *Account) ValidateActive() error {
	if a.Status != AccountStatusActive {
		return apperrors.AccountNotActive(a.Number, string(a.Status))
	}
	return nil
}

func (a *Account) ValidateAvailableLimit(amount money.Money) error {
	if a.AvailableLimit.LessThan(amount) {
		return apperrors.InsufficientLimit(a.AvailableLimit.Formatted(), amount.Formatted())
	}
	return nil
}

func (a *Account) ValidateBalance(amount money.Money) error {
	if a.Balance.LessThan(amount) {
		return apperrors.InsufficientBalance(a.Balance.Formatted(), amount.Formatted())
	}
	return nil
}

// Debit withdraws amount from the account. Checks run in order: status,
// balance, available limit. Either all pass and both fields move, or the
// account is left untouched. Not idempotent.
func (a *Account) Debit(amount money.Money) error {
	if err := a.ValidateActive(); err != nil {
		return err
	}
	if err := a.ValidateBalance(amount); err != nil {
		return err
	}
	if err := a.ValidateAvailableLimit(amount); err != nil {
		return err
	}

	a.Balance = a.Balance.Sub(amount)
	a.AvailableLimit = a.AvailableLimit.Sub(amount)
	a.UpdatedAt = time.Now()

	return nil
}

// Credit deposits amount. Credits are unconditional while the account is
// active; they do not restore the available limit (that is a transfer cap,
// not a balance cap).
func (a *Account) Credit(amount money.Money) error {
	if err := a.ValidateActive(); err != nil {
		return err
	}

	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now()

	return nil
}
