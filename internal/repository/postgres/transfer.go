package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/money"
)

type TransferRepo struct {
	DB DBTX
}

const transferColumns = `id, source_account_id, target_account_id, amount, status,
failure_reason, bacen_notification_id, created_at, completed_at, bacen_notified_at, bacen_retry_count`

const findTransferByID = `-- name: FindTransferByID
SELECT ` + transferColumns + `
FROM transfers
WHERE id = $1
`

func (r *TransferRepo) FindByID(ctx context.Context, id uuid.UUID) (models.Transfer, error) {
	rows, _ := r.DB.Query(ctx, findTransferByID, id)
	transfer, err := pgx.CollectOneRow(rows, rowToTransfer)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return transfer, apperrors.TransferNotFound(id.String())
	}

	return transfer, err
}

// Save upserts by id: the orchestrator persists the same aggregate at every
// status change, sometimes outside the transaction that created it
const saveTransfer = `-- name: SaveTransfer
INSERT INTO transfers (` + transferColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    failure_reason = EXCLUDED.failure_reason,
    bacen_notification_id = EXCLUDED.bacen_notification_id,
    completed_at = EXCLUDED.completed_at,
    bacen_notified_at = EXCLUDED.bacen_notified_at,
    bacen_retry_count = EXCLUDED.bacen_retry_count
RETURNING ` + transferColumns + `
`

func (r *TransferRepo) Save(ctx context.Context, transfer models.Transfer) (models.Transfer, error) {
	rows, _ := r.DB.Query(ctx, saveTransfer,
		transfer.ID,
		transfer.SourceAccountID,
		transfer.TargetAccountID,
		transfer.Amount.Decimal(),
		string(transfer.Status),
		transfer.FailureReason,
		transfer.BacenNotificationID,
		transfer.CreatedAt,
		nullableTime(transfer.CompletedAt),
		nullableTime(transfer.BacenNotifiedAt),
		transfer.BacenRetryCount,
	)
	saved, err := pgx.CollectOneRow(rows, rowToTransfer)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return saved, nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation:
		// One of the account ids does not exist
		return saved, apperrors.AccountNotFound(pgErr.Detail)
	default:
		return saved, fmt.Errorf("db error: %w", err)
	}
}

const listTransfersByAccount = `-- name: ListTransfersByAccount
SELECT ` + transferColumns + `
FROM transfers
WHERE source_account_id = $1 OR target_account_id = $1
ORDER BY created_at DESC
LIMIT $2
`

func (r *TransferRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Transfer, error) {
	rows, _ := r.DB.Query(ctx, listTransfersByAccount, accountID, limit)
	transfers, err := pgx.CollectRows(rows, rowToTransfer)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transfers, nil
}

const listBacenPending = `-- name: ListBacenPending
SELECT ` + transferColumns + `
FROM transfers
WHERE status = 'BACEN_PENDING' AND bacen_retry_count < $1
ORDER BY created_at
LIMIT $2
`

func (r *TransferRepo) ListBacenPending(ctx context.Context, maxRetry int, limit int) ([]models.Transfer, error) {
	rows, _ := r.DB.Query(ctx, listBacenPending, maxRetry, limit)
	transfers, err := pgx.CollectRows(rows, rowToTransfer)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transfers, nil
}

func rowToTransfer(row pgx.CollectableRow) (models.Transfer, error) {
	var t models.Transfer
	var amount decimal.Decimal
	var status string
	var completedAt, notifiedAt *time.Time

	err := row.Scan(
		&t.ID, &t.SourceAccountID, &t.TargetAccountID, &amount, &status,
		&t.FailureReason, &t.BacenNotificationID, &t.CreatedAt, &completedAt, &notifiedAt, &t.BacenRetryCount,
	)
	if err != nil {
		return t, err
	}

	t.Amount = money.FromDecimal(amount)
	t.Status = models.TransferStatus(status)
	if completedAt != nil {
		t.CompletedAt = *completedAt
	}
	if notifiedAt != nil {
		t.BacenNotifiedAt = *notifiedAt
	}

	return t, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
