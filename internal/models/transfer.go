package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/money"
)

type TransferStatus string

const (
	TransferStatusPending       TransferStatus = "PENDING"
	TransferStatusProcessing    TransferStatus = "PROCESSING"
	TransferStatusCompleted     TransferStatus = "COMPLETED"
	TransferStatusFailed        TransferStatus = "FAILED"
	TransferStatusBacenPending  TransferStatus = "BACEN_PENDING"
	TransferStatusBacenNotified TransferStatus = "BACEN_NOTIFIED"
)

// CanTransitionTo reports whether moving to next is allowed. Transitions are
// monotonic; FAILED and BACEN_NOTIFIED are terminal.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	switch s {
	case TransferStatusPending:
		return next == TransferStatusProcessing || next == TransferStatusFailed
	case TransferStatusProcessing:
		return next == TransferStatusCompleted || next == TransferStatusFailed
	case TransferStatusCompleted:
		return next == TransferStatusBacenPending
	case TransferStatusBacenPending:
		return next == TransferStatusBacenNotified || next == TransferStatusFailed
	default:
		return false
	}
}

// IsSuccess is true once the funds movement has committed, whether or not
// the regulator has confirmed yet
func (s TransferStatus) IsSuccess() bool {
	return s == TransferStatusCompleted || s == TransferStatusBacenNotified
}

// IsFinal is true for states that admit no further transitions.
// COMPLETED is success but not final: it still awaits BACEN.
func (s TransferStatus) IsFinal() bool {
	return s == TransferStatusBacenNotified || s == TransferStatusFailed
}

func (s TransferStatus) CanRetry() bool {
	return s == TransferStatusFailed || s == TransferStatusBacenPending
}

// Transfer is the aggregate root for one funds movement between two
// accounts. Amount is fixed at creation; Status only moves forward.
type Transfer struct {
	ID                  uuid.UUID
	SourceAccountID     uuid.UUID
	TargetAccountID     uuid.UUID
	Amount              money.Money
	Status              TransferStatus
	FailureReason       string
	BacenNotificationID string
	CreatedAt           time.Time
	CompletedAt         time.Time
	BacenNotifiedAt     time.Time
	BacenRetryCount     int
}

func NewTransfer(sourceID, targetID uuid.UUID, amount money.Money) Transfer {
	return Transfer{
		ID:              uuid.New(),
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          amount,
		Status:          TransferStatusPending,
		CreatedAt:       time.Now(),
	}
}

func (t *Transfer) StartProcessing() error {
	return t.transition(TransferStatusProcessing)
}

func (t *Transfer) Complete() error {
	if err := t.transition(TransferStatusCompleted); err != nil {
		return err
	}
	t.CompletedAt = time.Now()
	return nil
}

func (t *Transfer) MarkBacenPending() error {
	return t.transition(TransferStatusBacenPending)
}

func (t *Transfer) MarkBacenNotified(notificationID string) error {
	if err := t.transition(TransferStatusBacenNotified); err != nil {
		return err
	}
	t.BacenNotificationID = notificationID
	t.BacenNotifiedAt = time.Now()
	return nil
}

func (t *Transfer) Fail(reason string) error {
	if err := t.transition(TransferStatusFailed); err != nil {
		return err
	}
	t.FailureReason = reason
	t.CompletedAt = time.Now()
	return nil
}

func (t *Transfer) IncrementBacenRetry() {
	t.BacenRetryCount++
}

// transition enforces the state machine. A disallowed move is a programming
// fault, not a business condition, so it surfaces as an internal error.
func (t *Transfer) transition(next TransferStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return apperrors.Internal(
			fmt.Sprintf("invalid transfer status transition %s -> %s for transfer %s", t.Status, next, t.ID),
			nil,
		)
	}

	t.Status = next
	return nil
}
