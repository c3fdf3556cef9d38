package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gmelo/transferapi/internal/models"
)

// ErrDailyLimitNotFound signals a missing usage row for (account, day).
// Never surfaces to API callers: the orchestrator reacts by creating the row.
var ErrDailyLimitNotFound = errors.New("daily transfer limit not found")

// Account repository interface
type AccountRepo interface {
	// Find account by its external lookup key (number, agency)
	// If the account is absent must return apperrors.AccountNotFound
	FindByNumberAndAgency(ctx context.Context, number string, agency string) (models.Account, error)

	// Same lookup but acquires an exclusive row lock for the caller's
	// transaction. Callers outside a transaction get no lock benefit.
	FindByNumberAndAgencyForUpdate(ctx context.Context, number string, agency string) (models.Account, error)

	FindByID(ctx context.Context, id uuid.UUID) (models.Account, error)

	// Persist balance/limit/status changes
	Save(ctx context.Context, account models.Account) (models.Account, error)
}

// Daily transfer limit repository interface
type DailyLimitRepo interface {
	// Find the usage row for (account, day)
	// If absent must return ErrDailyLimitNotFound
	Find(ctx context.Context, accountID uuid.UUID, date time.Time) (models.DailyTransferLimit, error)

	// Find with an exclusive row lock, to serialize concurrent usage checks
	FindForUpdate(ctx context.Context, accountID uuid.UUID, date time.Time) (models.DailyTransferLimit, error)

	// Create the day's row with zero usage. Concurrent creation of the same
	// row must not fail (first writer wins).
	Create(ctx context.Context, limit models.DailyTransferLimit) error

	Save(ctx context.Context, limit models.DailyTransferLimit) (models.DailyTransferLimit, error)
}

// Transfer repository interface
type TransferRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.Transfer, error)

	// Save inserts or updates by id. Transfers are never deleted.
	Save(ctx context.Context, transfer models.Transfer) (models.Transfer, error)

	// Transfers touching the account (either side), newest first
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Transfer, error)

	// Transfers stuck at BACEN_PENDING with retry count below maxRetry,
	// oldest first; used by the re-notification worker
	ListBacenPending(ctx context.Context, maxRetry int, limit int) ([]models.Transfer, error)
}

// Storage aggregates the repositories and owns the transaction boundary
type Storage interface {
	Account() AccountRepo
	DailyLimit() DailyLimitRepo
	Transfer() TransferRepo

	// InTx runs fn against a storage bound to a single database transaction.
	// Commits when fn returns nil, rolls back otherwise. Row locks acquired
	// through ForUpdate lookups are held until the transaction ends.
	InTx(ctx context.Context, fn func(Storage) error) error
}
