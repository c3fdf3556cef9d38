package handlers

import (
	"net/http"
	"time"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/handlers/render"
	"github.com/gmelo/transferapi/internal/logger"
)

func handleGetBalance(balanceService balanceService, l logger.Logger) http.Handler {
	type response struct {
		AccountNumber     string    `json:"accountNumber"`
		Agency            string    `json:"agency"`
		HolderName        string    `json:"holderName"`
		Status            string    `json:"status"`
		Balance           string    `json:"balance"`
		BalanceFormatted  string    `json:"balanceFormatted"`
		AvailableLimit    string    `json:"availableLimit"`
		DailyLimitTotal   string    `json:"dailyLimitTotal"`
		DailyLimitUsed    string    `json:"dailyLimitUsed"`
		DailyLimitLeft    string    `json:"dailyLimitRemaining"`
		AsOf              time.Time `json:"asOf"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := balanceService.GetBalance(r.Context(), r.PathValue("number"), r.PathValue("agency"))

		switch {
		case err == nil:
			render.JSON(w, response{
				AccountNumber:    b.Number,
				Agency:           b.Agency,
				HolderName:       b.HolderName,
				Status:           string(b.Status),
				Balance:          b.Balance.String(),
				BalanceFormatted: b.Balance.Formatted(),
				AvailableLimit:   b.AvailableLimit.String(),
				DailyLimitTotal:  b.DailyLimitTotal.String(),
				DailyLimitUsed:   b.DailyLimitUsed.String(),
				DailyLimitLeft:   b.DailyLimitLeft.String(),
				AsOf:             b.AsOf,
			})
		case apperrors.IsKind(err, apperrors.KindNotFound):
			render.AppError(w, err)
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
