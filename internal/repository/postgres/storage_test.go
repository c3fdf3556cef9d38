package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/money"
	"github.com/gmelo/transferapi/internal/repository"
	"github.com/gmelo/transferapi/internal/testutil"
)

// Seeded demo accounts from the migrations
const (
	seededSourceNumber = "12345-6"
	seededTargetNumber = "65432-1"
	seededAgency       = "0001"
)

func TestAccountRepo(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("find seeded account", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &AccountRepo{DB: tx}

			account, err := repo.FindByNumberAndAgency(t.Context(), seededSourceNumber, seededAgency)

			require.NoError(t, err)
			require.Equal(t, seededSourceNumber, account.Number)
			require.Equal(t, seededAgency, account.Agency)
			require.Equal(t, models.AccountStatusActive, account.Status)
			require.Equal(t, "5000.00", account.Balance.String())
			require.Equal(t, "10000.00", account.AvailableLimit.String())
		})
	})

	t.Run("unknown account", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &AccountRepo{DB: tx}

			_, err := repo.FindByNumberAndAgency(t.Context(), "00000-0", seededAgency)

			require.ErrorIs(t, err, apperrors.AccountNotFound(""))
		})
	})

	t.Run("for update returns same row", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &AccountRepo{DB: tx}

			account, err := repo.FindByNumberAndAgencyForUpdate(t.Context(), seededSourceNumber, seededAgency)

			require.NoError(t, err)
			require.Equal(t, seededSourceNumber, account.Number)
		})
	})

	t.Run("save persists mutations", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &AccountRepo{DB: tx}

			account, err := repo.FindByNumberAndAgency(t.Context(), seededSourceNumber, seededAgency)
			require.NoError(t, err)

			require.NoError(t, account.Debit(money.MustParse("150.00")))

			saved, err := repo.Save(t.Context(), account)
			require.NoError(t, err)
			require.Equal(t, "4850.00", saved.Balance.String())
			require.Equal(t, "9850.00", saved.AvailableLimit.String())

			reread, err := repo.FindByID(t.Context(), account.ID)
			require.NoError(t, err)
			require.Equal(t, "4850.00", reread.Balance.String())
		})
	})

	t.Run("save unknown id", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &AccountRepo{DB: tx}

			ghost := models.Account{ID: uuid.New(), Status: models.AccountStatusActive}
			_, err := repo.Save(t.Context(), ghost)

			require.ErrorIs(t, err, apperrors.AccountNotFound(""))
		})
	})
}

func TestDailyLimitRepo(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	accountID := func(t *testing.T, tx pgx.Tx) uuid.UUID {
		t.Helper()
		repo := &AccountRepo{DB: tx}
		account, err := repo.FindByNumberAndAgency(t.Context(), seededSourceNumber, seededAgency)
		require.NoError(t, err)
		return account.ID
	}

	t.Run("missing row", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &DailyLimitRepo{DB: tx}

			_, err := repo.Find(t.Context(), accountID(t, tx), models.DateOf(time.Now()))

			require.ErrorIs(t, err, repository.ErrDailyLimitNotFound)
		})
	})

	t.Run("create then find and save", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &DailyLimitRepo{DB: tx}
			id := accountID(t, tx)

			require.NoError(t, repo.Create(t.Context(), models.NewDailyTransferLimit(id)))

			limit, err := repo.FindForUpdate(t.Context(), id, models.DateOf(time.Now()))
			require.NoError(t, err)
			require.True(t, limit.UsedAmount.IsZero())
			require.Equal(t, "1000.00", limit.DailyLimit.String())

			require.NoError(t, limit.UseLimit(money.MustParse("150.00")))

			saved, err := repo.Save(t.Context(), limit)
			require.NoError(t, err)
			require.Equal(t, "150.00", saved.UsedAmount.String())
		})
	})

	t.Run("concurrent create is first writer wins", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &DailyLimitRepo{DB: tx}
			id := accountID(t, tx)

			require.NoError(t, repo.Create(t.Context(), models.NewDailyTransferLimit(id)))
			require.NoError(t, repo.Create(t.Context(), models.NewDailyTransferLimit(id)),
				"second create of the same day must not fail")
		})
	})
}

func TestTransferRepo(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newPendingTransfer := func(t *testing.T, tx pgx.Tx) models.Transfer {
		t.Helper()
		accounts := &AccountRepo{DB: tx}

		source, err := accounts.FindByNumberAndAgency(t.Context(), seededSourceNumber, seededAgency)
		require.NoError(t, err)
		target, err := accounts.FindByNumberAndAgency(t.Context(), seededTargetNumber, seededAgency)
		require.NoError(t, err)

		transfer := models.NewTransfer(source.ID, target.ID, money.MustParse("150.00"))
		require.NoError(t, transfer.StartProcessing())
		require.NoError(t, transfer.Complete())
		require.NoError(t, transfer.MarkBacenPending())
		return transfer
	}

	t.Run("save and read back", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &TransferRepo{DB: tx}
			transfer := newPendingTransfer(t, tx)

			saved, err := repo.Save(t.Context(), transfer)
			require.NoError(t, err)
			require.Equal(t, transfer.ID, saved.ID)
			require.Equal(t, models.TransferStatusBacenPending, saved.Status)
			require.Equal(t, "150.00", saved.Amount.String())
			require.False(t, saved.CompletedAt.IsZero())
			require.True(t, saved.BacenNotifiedAt.IsZero())

			reread, err := repo.FindByID(t.Context(), transfer.ID)
			require.NoError(t, err)
			require.Equal(t, models.TransferStatusBacenPending, reread.Status)
		})
	})

	t.Run("save upserts by id", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &TransferRepo{DB: tx}
			transfer := newPendingTransfer(t, tx)

			_, err := repo.Save(t.Context(), transfer)
			require.NoError(t, err)

			require.NoError(t, transfer.MarkBacenNotified("bacen-7"))

			saved, err := repo.Save(t.Context(), transfer)
			require.NoError(t, err)
			require.Equal(t, models.TransferStatusBacenNotified, saved.Status)
			require.Equal(t, "bacen-7", saved.BacenNotificationID)
			require.False(t, saved.BacenNotifiedAt.IsZero())
		})
	})

	t.Run("unknown id", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &TransferRepo{DB: tx}

			_, err := repo.FindByID(t.Context(), uuid.New())

			require.ErrorIs(t, err, apperrors.TransferNotFound(""))
		})
	})

	t.Run("list by account sees both sides", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &TransferRepo{DB: tx}
			transfer := newPendingTransfer(t, tx)

			_, err := repo.Save(t.Context(), transfer)
			require.NoError(t, err)

			for _, accountID := range []uuid.UUID{transfer.SourceAccountID, transfer.TargetAccountID} {
				list, err := repo.ListByAccount(t.Context(), accountID, 10)
				require.NoError(t, err)
				require.Len(t, list, 1)
				require.Equal(t, transfer.ID, list[0].ID)
			}
		})
	})

	t.Run("list pending honors retry ceiling", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &TransferRepo{DB: tx}

			young := newPendingTransfer(t, tx)
			_, err := repo.Save(t.Context(), young)
			require.NoError(t, err)

			exhausted := newPendingTransfer(t, tx)
			exhausted.BacenRetryCount = 10
			_, err = repo.Save(t.Context(), exhausted)
			require.NoError(t, err)

			list, err := repo.ListBacenPending(t.Context(), 10, 50)
			require.NoError(t, err)
			require.Len(t, list, 1)
			require.Equal(t, young.ID, list[0].ID)
		})
	})
}

func TestStorageInTx(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("error rolls everything back", func(t *testing.T) {
		storage := NewStorage(pg.Pool)
		boom := errors.New("abort")

		err := storage.InTx(t.Context(), func(store repository.Storage) error {
			account, err := store.Account().FindByNumberAndAgencyForUpdate(t.Context(), seededSourceNumber, seededAgency)
			if err != nil {
				return err
			}

			if err := account.Debit(money.MustParse("1.00")); err != nil {
				return err
			}
			if _, err := store.Account().Save(t.Context(), account); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		account, err := NewStorage(pg.Pool).Account().FindByNumberAndAgency(t.Context(), seededSourceNumber, seededAgency)
		require.NoError(t, err)
		require.Equal(t, "5000.00", account.Balance.String(), "rolled back write must not be visible")
	})

	t.Run("nil commits", func(t *testing.T) {
		storage := NewStorage(pg.Pool)

		var transferID uuid.UUID
		err := storage.InTx(t.Context(), func(store repository.Storage) error {
			source, err := store.Account().FindByNumberAndAgency(t.Context(), seededSourceNumber, seededAgency)
			if err != nil {
				return err
			}
			target, err := store.Account().FindByNumberAndAgency(t.Context(), seededTargetNumber, seededAgency)
			if err != nil {
				return err
			}

			transfer := models.NewTransfer(source.ID, target.ID, money.MustParse("10.00"))
			transferID = transfer.ID
			_, err = store.Transfer().Save(t.Context(), transfer)
			return err
		})
		require.NoError(t, err)

		t.Cleanup(func() {
			_, err := pg.Pool.Exec(context.Background(), "DELETE FROM transfers WHERE id = $1", transferID)
			require.NoError(t, err)
		})

		saved, err := NewStorage(pg.Pool).Transfer().FindByID(t.Context(), transferID)
		require.NoError(t, err)
		require.Equal(t, models.TransferStatusPending, saved.Status)
	})
}
