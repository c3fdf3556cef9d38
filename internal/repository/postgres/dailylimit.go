package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/money"
	"github.com/gmelo/transferapi/internal/repository"
)

type DailyLimitRepo struct {
	DB DBTX
}

const findDailyLimit = `-- name: FindDailyLimit
SELECT account_id, date, used_amount, daily_limit
FROM daily_transfer_limits
WHERE account_id = $1 AND date = $2
`

func (r *DailyLimitRepo) Find(ctx context.Context, accountID uuid.UUID, date time.Time) (models.DailyTransferLimit, error) {
	rows, _ := r.DB.Query(ctx, findDailyLimit, accountID, models.DateOf(date))
	limit, err := pgx.CollectOneRow(rows, rowToDailyLimit)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return limit, repository.ErrDailyLimitNotFound
	}

	return limit, err
}

const findDailyLimitForUpdate = `-- name: FindDailyLimitForUpdate
SELECT account_id, date, used_amount, daily_limit
FROM daily_transfer_limits
WHERE account_id = $1 AND date = $2
FOR UPDATE
`

func (r *DailyLimitRepo) FindForUpdate(ctx context.Context, accountID uuid.UUID, date time.Time) (models.DailyTransferLimit, error) {
	rows, _ := r.DB.Query(ctx, findDailyLimitForUpdate, accountID, models.DateOf(date))
	limit, err := pgx.CollectOneRow(rows, rowToDailyLimit)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return limit, repository.ErrDailyLimitNotFound
	}

	return limit, err
}

// Create inserts the day's row with zero usage. Two writers racing for the
// same (account, day) both succeed: the first insert wins, the second is a
// no-op and rereads under its lock.
const createDailyLimit = `-- name: CreateDailyLimit
INSERT INTO daily_transfer_limits (account_id, date, used_amount, daily_limit)
VALUES ($1, $2, $3, $4)
ON CONFLICT (account_id, date) DO NOTHING
`

func (r *DailyLimitRepo) Create(ctx context.Context, limit models.DailyTransferLimit) error {
	_, err := r.DB.Exec(ctx, createDailyLimit,
		limit.AccountID,
		models.DateOf(limit.Date),
		limit.UsedAmount.Decimal(),
		limit.DailyLimit.Decimal(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

const saveDailyLimit = `-- name: SaveDailyLimit
UPDATE daily_transfer_limits
SET used_amount = $3, daily_limit = $4
WHERE account_id = $1 AND date = $2
RETURNING account_id, date, used_amount, daily_limit
`

func (r *DailyLimitRepo) Save(ctx context.Context, limit models.DailyTransferLimit) (models.DailyTransferLimit, error) {
	rows, _ := r.DB.Query(ctx, saveDailyLimit,
		limit.AccountID,
		models.DateOf(limit.Date),
		limit.UsedAmount.Decimal(),
		limit.DailyLimit.Decimal(),
	)
	saved, err := pgx.CollectOneRow(rows, rowToDailyLimit)

	switch {
	case err == nil:
		return saved, nil
	case errors.Is(err, pgx.ErrNoRows):
		return saved, repository.ErrDailyLimitNotFound
	default:
		return saved, fmt.Errorf("db error: %w", err)
	}
}

func rowToDailyLimit(row pgx.CollectableRow) (models.DailyTransferLimit, error) {
	var d models.DailyTransferLimit
	var used, limit decimal.Decimal

	err := row.Scan(&d.AccountID, &d.Date, &used, &limit)
	if err != nil {
		return d, err
	}

	d.UsedAmount = money.FromDecimal(used)
	d.DailyLimit = money.FromDecimal(limit)

	return d, nil
}
