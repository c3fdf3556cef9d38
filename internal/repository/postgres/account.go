package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/money"
)

type AccountRepo struct {
	DB DBTX
}

const findAccount = `-- name: FindByNumberAndAgency
SELECT id, number, agency, client_id, balance, available_limit, status, created_at, updated_at
FROM accounts
WHERE number = $1 AND agency = $2
`

func (r *AccountRepo) FindByNumberAndAgency(ctx context.Context, number string, agency string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, findAccount, number, agency)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return account, apperrors.AccountNotFound(number)
	}

	return account, err
}

const findAccountForUpdate = `-- name: FindByNumberAndAgencyForUpdate
SELECT id, number, agency, client_id, balance, available_limit, status, created_at, updated_at
FROM accounts
WHERE number = $1 AND agency = $2
FOR UPDATE
`

func (r *AccountRepo) FindByNumberAndAgencyForUpdate(ctx context.Context, number string, agency string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, findAccountForUpdate, number, agency)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return account, apperrors.AccountNotFound(number)
	}

	return account, err
}

const findAccountByID = `-- name: FindAccountByID
SELECT id, number, agency, client_id, balance, available_limit, status, created_at, updated_at
FROM accounts
WHERE id = $1
`

func (r *AccountRepo) FindByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, findAccountByID, id)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return account, apperrors.AccountNotFound(id.String())
	}

	return account, err
}

const saveAccount = `-- name: SaveAccount
UPDATE accounts
SET balance = $2, available_limit = $3, status = $4, updated_at = $5
WHERE id = $1
RETURNING id, number, agency, client_id, balance, available_limit, status, created_at, updated_at
`

func (r *AccountRepo) Save(ctx context.Context, account models.Account) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, saveAccount,
		account.ID,
		account.Balance.Decimal(),
		account.AvailableLimit.Decimal(),
		string(account.Status),
		account.UpdatedAt,
	)
	saved, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return saved, nil
	case errors.Is(err, pgx.ErrNoRows):
		return saved, apperrors.AccountNotFound(account.ID.String())
	default:
		return saved, fmt.Errorf("db error: %w", err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	var balance, limit decimal.Decimal
	var status string

	err := row.Scan(&a.ID, &a.Number, &a.Agency, &a.ClientID, &balance, &limit, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}

	a.Balance = money.FromDecimal(balance)
	a.AvailableLimit = money.FromDecimal(limit)
	a.Status = models.AccountStatus(status)

	return a, nil
}
