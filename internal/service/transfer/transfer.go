// Package transfer implements the transfer execution pipeline: validations,
// double-entry balance mutation, daily-limit usage, the transfer state
// machine and the at-least-once BACEN notification protocol.
package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/money"
	"github.com/gmelo/transferapi/internal/repository"
)

type registryClient interface {
	// Has to return apperrors.ClientNotFound for absent clients and an
	// integration-kind error for outages
	FindClientByID(ctx context.Context, clientID uuid.UUID) (models.Client, error)
}

type bacenNotifier interface {
	// Has to classify failures: rate-limited, unavailable, or terminal
	NotifyTransfer(ctx context.Context, transfer models.Transfer) (string, error)
}

type ExecuteParams struct {
	SourceNumber string
	SourceAgency string
	TargetNumber string
	TargetAgency string
	Amount       string
	Description  string
}

type Result struct {
	Transfer      models.Transfer
	SourceAccount models.Account
	TargetAccount models.Account

	// BacenPending is set when the funds moved but the regulator has not
	// confirmed yet; the re-notification worker picks the transfer up later
	BacenPending bool
}

type Service struct {
	storage  repository.Storage
	registry registryClient
	bacen    bacenNotifier
	logger   logger.Logger
}

func NewService(storage repository.Storage, registry registryClient, bacen bacenNotifier, l logger.Logger) *Service {
	return &Service{
		storage:  storage,
		registry: registry,
		bacen:    bacen,
		logger:   l,
	}
}

// Execute runs one transfer end to end.
//
// Precondition checks run in a fixed total order: same-account first (needs
// no I/O), then amount parsing, then account resolution. Steps 2-9 of the
// pipeline run inside a single database transaction holding an exclusive
// lock on the source account and its daily-limit row; the BACEN call runs
// after that transaction commits, so a regulator failure can never unwind a
// committed funds movement.
func (s *Service) Execute(ctx context.Context, p ExecuteParams) (Result, error) {
	if p.SourceNumber == p.TargetNumber && p.SourceAgency == p.TargetAgency {
		return Result{}, apperrors.SameAccountTransfer()
	}

	amount, err := money.Parse(p.Amount)
	if err != nil {
		return Result{}, err
	}
	if !amount.IsPositive() {
		return Result{}, apperrors.InvalidAmount(p.Amount)
	}

	var out Result

	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		return s.executeLocked(ctx, store, p, amount, &out)
	})

	if err != nil {
		return Result{}, s.routeExecuteError(ctx, err, &out)
	}

	s.logger.Info("Transfer funds movement committed",
		"transfer_id", out.Transfer.ID,
		"source", p.SourceNumber,
		"target", p.TargetNumber,
		"amount", amount.String(),
	)

	return s.notifyBacen(ctx, out)
}

// executeLocked is the body of the funds-movement transaction. On any error
// every write in it is rolled back.
func (s *Service) executeLocked(ctx context.Context, store repository.Storage, p ExecuteParams, amount money.Money, out *Result) error {
	source, err := store.Account().FindByNumberAndAgencyForUpdate(ctx, p.SourceNumber, p.SourceAgency)
	if err != nil {
		return err
	}

	target, err := store.Account().FindByNumberAndAgency(ctx, p.TargetNumber, p.TargetAgency)
	if err != nil {
		return err
	}

	if err := s.validateClient(ctx, source); err != nil {
		return err
	}

	if err := source.ValidateActive(); err != nil {
		return err
	}
	if err := target.ValidateActive(); err != nil {
		return err
	}

	if err := source.ValidateAvailableLimit(amount); err != nil {
		return err
	}

	dailyLimit, err := s.findOrCreateDailyLimit(ctx, store, source.ID)
	if err != nil {
		return err
	}
	if err := dailyLimit.ValidateLimit(amount); err != nil {
		return err
	}

	t := models.NewTransfer(source.ID, target.ID, amount)
	out.Transfer = t
	if err := t.StartProcessing(); err != nil {
		return err
	}

	if err := source.Debit(amount); err != nil {
		return err
	}
	if err := target.Credit(amount); err != nil {
		return err
	}
	if err := dailyLimit.UseLimit(amount); err != nil {
		return err
	}

	if out.SourceAccount, err = store.Account().Save(ctx, source); err != nil {
		return err
	}
	if out.TargetAccount, err = store.Account().Save(ctx, target); err != nil {
		return err
	}
	if _, err = store.DailyLimit().Save(ctx, dailyLimit); err != nil {
		return err
	}

	if err := t.Complete(); err != nil {
		return err
	}
	if err := t.MarkBacenPending(); err != nil {
		return err
	}

	if out.Transfer, err = store.Transfer().Save(ctx, t); err != nil {
		return err
	}

	return nil
}

// validateClient requires the owning client to be active in the registry.
// A registry outage does not block the transfer: availability wins over this
// particular check, the gap is logged for audit.
func (s *Service) validateClient(ctx context.Context, account models.Account) error {
	client, err := s.registry.FindClientByID(ctx, account.ClientID)

	switch {
	case err == nil:
		if !client.Active {
			return apperrors.ClientNotActive(client.Name)
		}
		return nil

	case apperrors.IsKind(err, apperrors.KindIntegration):
		s.logger.Warn("Registry unavailable, proceeding without client validation",
			"account", account.Number,
			"client_id", account.ClientID,
			"error", err,
		)
		return nil

	default:
		return err
	}
}

// findOrCreateDailyLimit locks today's usage row, creating it with zero
// usage on first reference. The row lock pairs with the source-account lock
// so two transfers can never both observe the same pre-debit usage.
func (s *Service) findOrCreateDailyLimit(ctx context.Context, store repository.Storage, accountID uuid.UUID) (models.DailyTransferLimit, error) {
	today := models.DateOf(time.Now())

	dailyLimit, err := store.DailyLimit().FindForUpdate(ctx, accountID, today)
	if err == nil {
		return dailyLimit, nil
	}
	if !errors.Is(err, repository.ErrDailyLimitNotFound) {
		return dailyLimit, err
	}

	if err := store.DailyLimit().Create(ctx, models.NewDailyTransferLimit(accountID)); err != nil {
		return dailyLimit, err
	}

	return store.DailyLimit().FindForUpdate(ctx, accountID, today)
}

// routeExecuteError handles a failed funds-movement transaction. Business,
// validation and not-found outcomes rolled back cleanly and just propagate.
// Unexpected faults additionally persist the transfer as FAILED (in a fresh
// transaction: the original row was rolled back) so the fault is auditable.
func (s *Service) routeExecuteError(ctx context.Context, err error, out *Result) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindBusiness, apperrors.KindValidation, apperrors.KindNotFound:
		return err
	}

	if out.Transfer.ID == uuid.Nil {
		return err
	}

	s.logger.Error("Transfer failed unexpectedly", "transfer_id", out.Transfer.ID, "error", err)

	t := out.Transfer
	if ferr := t.Fail(err.Error()); ferr == nil {
		if _, serr := s.storage.Transfer().Save(ctx, t); serr != nil {
			s.logger.Error("Failed to persist failed transfer", "transfer_id", t.ID, "error", serr)
		}
	}

	return err
}

// notifyBacen runs the saga's external leg after the funds movement has
// committed. Outcomes:
//   - confirmed: transfer reaches BACEN_NOTIFIED
//   - unavailable or rate limited: transfer stays BACEN_PENDING with the
//     retry counter bumped; the caller still gets a success result
//   - anything else: the transfer is marked FAILED and the error propagates
//     (the funds movement stays committed; only the notification state is
//     latched)
func (s *Service) notifyBacen(ctx context.Context, out Result) (Result, error) {
	t := out.Transfer

	notificationID, err := s.bacen.NotifyTransfer(ctx, t)

	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.CodeBacenUnavailable, apperrors.CodeBacenRateLimited:
			s.logger.Warn("Transfer committed but BACEN not notified",
				"transfer_id", t.ID,
				"error", err,
			)

			t.IncrementBacenRetry()
			if out.Transfer, err = s.storage.Transfer().Save(ctx, t); err != nil {
				return out, err
			}

			out.BacenPending = true
			return out, nil

		default:
			return s.failAfterCommit(ctx, out, err)
		}
	}

	if err := t.MarkBacenNotified(notificationID); err != nil {
		return s.failAfterCommit(ctx, out, err)
	}

	if out.Transfer, err = s.storage.Transfer().Save(ctx, t); err != nil {
		return out, err
	}

	s.logger.Info("Transfer confirmed by BACEN",
		"transfer_id", out.Transfer.ID,
		"notification_id", notificationID,
	)

	return out, nil
}

func (s *Service) failAfterCommit(ctx context.Context, out Result, err error) (Result, error) {
	s.logger.Error("Transfer failed after funds movement", "transfer_id", out.Transfer.ID, "error", err)

	t := out.Transfer
	if ferr := t.Fail(err.Error()); ferr == nil {
		if _, serr := s.storage.Transfer().Save(ctx, t); serr != nil {
			s.logger.Error("Failed to persist failed transfer", "transfer_id", t.ID, "error", serr)
		}
	}

	return out, err
}

// GetTransfer returns one transfer by id
func (s *Service) GetTransfer(ctx context.Context, id uuid.UUID) (models.Transfer, error) {
	return s.storage.Transfer().FindByID(ctx, id)
}

// ListByAccount returns the account's transfers, newest first
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Transfer, error) {
	return s.storage.Transfer().ListByAccount(ctx, accountID, limit)
}
