package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/money"
	"github.com/gmelo/transferapi/internal/service/balance"
	"github.com/gmelo/transferapi/internal/service/transfer"
)

type stubTransferService struct {
	result      transfer.Result
	executeErr  error
	transfer    models.Transfer
	transferErr error
	list        []models.Transfer

	gotParams transfer.ExecuteParams
}

func (s *stubTransferService) Execute(ctx context.Context, p transfer.ExecuteParams) (transfer.Result, error) {
	s.gotParams = p
	return s.result, s.executeErr
}

func (s *stubTransferService) GetTransfer(ctx context.Context, id uuid.UUID) (models.Transfer, error) {
	return s.transfer, s.transferErr
}

func (s *stubTransferService) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Transfer, error) {
	return s.list, nil
}

type stubBalanceService struct {
	balance balance.Balance
	err     error
}

func (s *stubBalanceService) GetBalance(ctx context.Context, number, agency string) (balance.Balance, error) {
	return s.balance, s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func notifiedTransfer() models.Transfer {
	t := models.NewTransfer(uuid.New(), uuid.New(), money.MustParse("150.00"))
	_ = t.StartProcessing()
	_ = t.Complete()
	_ = t.MarkBacenPending()
	_ = t.MarkBacenNotified("bacen-1")
	return t
}

func newTestRouter(ts transferService, bs balanceService, p pinger) http.Handler {
	return NewRouter(ts, bs, p, logger.NewNoOpLogger())
}

func TestCreateTransfer(t *testing.T) {
	validBody := `{
		"sourceAccountNumber": "12345-6",
		"sourceAgency": "0001",
		"targetAccountNumber": "65432-1",
		"targetAgency": "0001",
		"amount": "150.00"
	}`

	t.Run("created", func(t *testing.T) {
		done := notifiedTransfer()
		ts := &stubTransferService{result: transfer.Result{
			Transfer:      done,
			SourceAccount: models.Account{Balance: money.MustParse("4850.00")},
		}}
		router := newTestRouter(ts, &stubBalanceService{}, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(validBody)))

		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, "12345-6", ts.gotParams.SourceNumber)
		require.Equal(t, "150.00", ts.gotParams.Amount)

		var resp struct {
			Transfer struct {
				ID     uuid.UUID `json:"id"`
				Status string    `json:"status"`
				Amount string    `json:"amount"`
			} `json:"transfer"`
			SourceBalance string `json:"sourceBalance"`
			BacenPending  bool   `json:"bacenPending"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, done.ID, resp.Transfer.ID)
		require.Equal(t, "BACEN_NOTIFIED", resp.Transfer.Status)
		require.Equal(t, "150.00", resp.Transfer.Amount)
		require.Equal(t, "4850.00", resp.SourceBalance)
		require.False(t, resp.BacenPending)
	})

	t.Run("missing fields rejected before the service", func(t *testing.T) {
		ts := &stubTransferService{}
		router := newTestRouter(ts, &stubBalanceService{}, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(`{"amount":"10"}`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, "validation_failed", resp.Error)
		require.Contains(t, resp.Fields, "sourceAccountNumber")
	})

	t.Run("status by error kind", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
			code   string
		}{
			{"validation", apperrors.SameAccountTransfer(), http.StatusBadRequest, "TRF-1004"},
			{"business", apperrors.InsufficientBalance("", ""), http.StatusUnprocessableEntity, "TRF-2002"},
			{"daily limit", apperrors.DailyLimitExceeded("", "", ""), http.StatusUnprocessableEntity, "TRF-2004"},
			{"not found", apperrors.AccountNotFound("x"), http.StatusNotFound, "TRF-3001"},
			{"unavailable", apperrors.BacenUnavailable(nil), http.StatusServiceUnavailable, "TRF-4004"},
			{"terminal integration", apperrors.BacenError(nil), http.StatusBadGateway, "TRF-4003"},
			{"internal", errors.New("boom"), http.StatusInternalServerError, ""},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ts := &stubTransferService{executeErr: tt.err}
				router := newTestRouter(ts, &stubBalanceService{}, stubPinger{})

				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(validBody)))

				require.Equal(t, tt.status, rec.Code)

				if tt.code != "" {
					var resp struct {
						Code string `json:"code"`
					}
					require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
					require.Equal(t, tt.code, resp.Code)
				}
			})
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		router := newTestRouter(&stubTransferService{}, &stubBalanceService{}, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(`{`)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetTransferHandler(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		done := notifiedTransfer()
		router := newTestRouter(&stubTransferService{transfer: done}, &stubBalanceService{}, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transfers/"+done.ID.String(), nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			ID              uuid.UUID `json:"id"`
			AmountFormatted string    `json:"amountFormatted"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, done.ID, resp.ID)
		require.Equal(t, "R$ 150,00", resp.AmountFormatted)
	})

	t.Run("bad id", func(t *testing.T) {
		router := newTestRouter(&stubTransferService{}, &stubBalanceService{}, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transfers/not-a-uuid", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		ts := &stubTransferService{transferErr: apperrors.TransferNotFound("x")}
		router := newTestRouter(ts, &stubBalanceService{}, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transfers/"+uuid.NewString(), nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetBalanceHandler(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		bs := &stubBalanceService{balance: balance.Balance{
			Number:          "12345-6",
			Agency:          "0001",
			HolderName:      "Maria Silva",
			Status:          models.AccountStatusActive,
			Balance:         money.MustParse("4850.00"),
			AvailableLimit:  money.MustParse("9850.00"),
			DailyLimitTotal: money.MustParse("1000.00"),
			DailyLimitUsed:  money.MustParse("150.00"),
			DailyLimitLeft:  money.MustParse("850.00"),
		}}
		router := newTestRouter(&stubTransferService{}, bs, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/12345-6/0001/balance", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, "Maria Silva", resp["holderName"])
		require.Equal(t, "4850.00", resp["balance"])
		require.Equal(t, "R$ 4.850,00", resp["balanceFormatted"])
		require.Equal(t, "850.00", resp["dailyLimitRemaining"])
	})

	t.Run("unknown account", func(t *testing.T) {
		bs := &stubBalanceService{err: apperrors.AccountNotFound("99999-9")}
		router := newTestRouter(&stubTransferService{}, bs, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/99999-9/0001/balance", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListTransfersHandler(t *testing.T) {
	done := notifiedTransfer()
	ts := &stubTransferService{list: []models.Transfer{done}}
	bs := &stubBalanceService{balance: balance.Balance{AccountID: done.SourceAccountID}}
	router := newTestRouter(ts, bs, stubPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/12345-6/0001/transfers", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	require.Equal(t, done.ID.String(), resp[0]["id"])

	t.Run("invalid limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/12345-6/0001/transfers?limit=zero", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		router := newTestRouter(&stubTransferService{}, &stubBalanceService{}, stubPinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("database down", func(t *testing.T) {
		router := newTestRouter(&stubTransferService{}, &stubBalanceService{}, stubPinger{err: errors.New("no conn")})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
