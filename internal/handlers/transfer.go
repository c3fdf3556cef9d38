package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/handlers/render"
	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/service/transfer"
)

const defaultListLimit = 50

type transferResponse struct {
	ID                  uuid.UUID  `json:"id"`
	SourceAccountID     uuid.UUID  `json:"sourceAccountId"`
	TargetAccountID     uuid.UUID  `json:"targetAccountId"`
	Amount              string     `json:"amount"`
	AmountFormatted     string     `json:"amountFormatted"`
	Status              string     `json:"status"`
	FailureReason       string     `json:"failureReason,omitempty"`
	BacenNotificationID string     `json:"bacenNotificationId,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	BacenNotifiedAt     *time.Time `json:"bacenNotifiedAt,omitempty"`
}

func toTransferResponse(t models.Transfer) transferResponse {
	resp := transferResponse{
		ID:                  t.ID,
		SourceAccountID:     t.SourceAccountID,
		TargetAccountID:     t.TargetAccountID,
		Amount:              t.Amount.String(),
		AmountFormatted:     t.Amount.Formatted(),
		Status:              string(t.Status),
		FailureReason:       t.FailureReason,
		BacenNotificationID: t.BacenNotificationID,
		CreatedAt:           t.CreatedAt,
	}
	if !t.CompletedAt.IsZero() {
		completedAt := t.CompletedAt
		resp.CompletedAt = &completedAt
	}
	if !t.BacenNotifiedAt.IsZero() {
		notifiedAt := t.BacenNotifiedAt
		resp.BacenNotifiedAt = &notifiedAt
	}
	return resp
}

func handleCreateTransfer(transferService transferService, l logger.Logger) http.Handler {
	type request struct {
		SourceAccountNumber string `json:"sourceAccountNumber" validate:"required"`
		SourceAgency        string `json:"sourceAgency" validate:"required"`
		TargetAccountNumber string `json:"targetAccountNumber" validate:"required"`
		TargetAgency        string `json:"targetAgency" validate:"required"`
		Amount              string `json:"amount" validate:"required"`
		Description         string `json:"description" validate:"omitempty,max=140"`
	}

	type response struct {
		Transfer      transferResponse `json:"transfer"`
		SourceBalance string           `json:"sourceBalance"`
		BacenPending  bool             `json:"bacenPending"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		result, err := transferService.Execute(r.Context(), transfer.ExecuteParams{
			SourceNumber: req.SourceAccountNumber,
			SourceAgency: req.SourceAgency,
			TargetNumber: req.TargetAccountNumber,
			TargetAgency: req.TargetAgency,
			Amount:       req.Amount,
			Description:  req.Description,
		})

		if err != nil {
			if apperrors.IsKind(err, apperrors.KindInternal) {
				l.Error("Transfer execution failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			render.AppError(w, err)
			return
		}

		render.JSONWithStatus(w, response{
			Transfer:      toTransferResponse(result.Transfer),
			SourceBalance: result.SourceAccount.Balance.String(),
			BacenPending:  result.BacenPending,
		}, http.StatusCreated)
	})
}

func handleGetTransfer(transferService transferService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid transfer id", http.StatusBadRequest)
			return
		}

		t, err := transferService.GetTransfer(r.Context(), id)

		switch {
		case err == nil:
			render.JSON(w, toTransferResponse(t))
		case apperrors.IsKind(err, apperrors.KindNotFound):
			render.AppError(w, err)
		default:
			l.Error("Failed to get transfer", "error", err, "transfer_id", id)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListTransfers(transferService transferService, balanceService balanceService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				render.ServiceError(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		// Resolve the account id through the balance view so number and
		// agency stay the only external identifiers
		b, err := balanceService.GetBalance(r.Context(), r.PathValue("number"), r.PathValue("agency"))
		if err != nil {
			if apperrors.IsKind(err, apperrors.KindNotFound) {
				render.AppError(w, err)
				return
			}
			l.Error("Failed to resolve account", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		transfers, err := transferService.ListByAccount(r.Context(), b.AccountID, limit)
		if err != nil {
			l.Error("Failed to list transfers", "error", err, "account_id", b.AccountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		responses := make([]transferResponse, 0, len(transfers))
		for _, t := range transfers {
			responses = append(responses, toTransferResponse(t))
		}
		render.JSON(w, responses)
	})
}
